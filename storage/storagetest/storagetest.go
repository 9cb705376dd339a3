// Package storagetest holds a conformance suite shared by storage backends.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ggoodman/fbsignedrequest/storage"
)

// Run exercises s against the storage.Storage contract. The backend must be
// empty when Run starts.
func Run(t *testing.T, s storage.Storage) {
	t.Run("SetAndGet", func(t *testing.T) { testSetAndGet(t, s) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, s) })
	t.Run("TTL", func(t *testing.T) { testTTL(t, s) })
	t.Run("Namespaces", func(t *testing.T) { testNamespaces(t, s) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, s) })
	t.Run("InvalidTTL", func(t *testing.T) { testInvalidTTL(t, s) })
}

func testSetAndGet(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	if err := s.Set(ctx, "k1", []byte(`{"id":"U1"}`)); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	item, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if item == nil {
		t.Fatal("Get() returned nil item")
	}
	if string(item.Data) != `{"id":"U1"}` {
		t.Fatalf("Get() returned wrong data: %s", item.Data)
	}
	if item.ExpiresAt != nil {
		t.Fatalf("expected no expiry, got %v", item.ExpiresAt)
	}
}

func testGetMissing(t *testing.T, s storage.Storage) {
	item, err := s.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil item, got %+v", item)
	}
}

func testTTL(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	if err := s.Set(ctx, "short", []byte("x"), storage.WithTTL(50*time.Millisecond)); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	item, err := s.Get(ctx, "short")
	if err != nil || item == nil {
		t.Fatalf("expected live item, got %v, %v", item, err)
	}
	if item.ExpiresAt == nil {
		t.Fatal("expected expiry to be recorded")
	}
	time.Sleep(150 * time.Millisecond)
	item, err = s.Get(ctx, "short")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if item != nil {
		t.Fatalf("expected expired item to be gone, got %+v", item)
	}
}

func testNamespaces(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	if err := s.Set(ctx, "shared", []byte("a"), storage.WithNamespace("app-a")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := s.Set(ctx, "shared", []byte("b"), storage.WithNamespace("app-b")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	for ns, want := range map[string]string{"app-a": "a", "app-b": "b"} {
		item, err := s.Get(ctx, "shared", storage.WithNamespace(ns))
		if err != nil || item == nil {
			t.Fatalf("Get(%s) = %v, %v", ns, item, err)
		}
		if string(item.Data) != want {
			t.Fatalf("namespace %s: got %q want %q", ns, item.Data, want)
		}
	}
	if item, _ := s.Get(ctx, "shared"); item != nil {
		t.Fatalf("global namespace leaked namespaced value %q", item.Data)
	}
}

func testDelete(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	if err := s.Set(ctx, "gone", []byte("x"), storage.WithNamespace("app")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := s.Delete(ctx, "gone", storage.WithNamespace("app")); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if item, _ := s.Get(ctx, "gone", storage.WithNamespace("app")); item != nil {
		t.Fatalf("expected deleted item to be gone")
	}
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("Delete() of missing key failed: %v", err)
	}
}

func testInvalidTTL(t *testing.T, s storage.Storage) {
	err := s.Set(context.Background(), "k", []byte("x"), storage.WithTTL(-time.Second))
	if !errors.Is(err, storage.ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
}
