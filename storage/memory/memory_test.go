package memory

import (
	"context"
	"testing"

	"github.com/ggoodman/fbsignedrequest/storage/storagetest"
)

func TestMemoryStorage(t *testing.T) {
	s, err := New(100)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()
	storagetest.Run(t, s)
}

func TestNew_InvalidSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}

func TestEviction(t *testing.T) {
	s, err := New(2)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Set(%s) failed: %v", k, err)
		}
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Len())
	}
	if item, _ := s.Get(ctx, "a"); item != nil {
		t.Fatal("expected least recently used entry to be evicted")
	}
}

func TestSetCopiesData(t *testing.T) {
	s, err := New(10)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	buf := []byte("orig")
	if err := s.Set(ctx, "k", buf); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	buf[0] = 'X'
	item, _ := s.Get(ctx, "k")
	if string(item.Data) != "orig" {
		t.Fatalf("stored data aliased caller buffer: %q", item.Data)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := New(10)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
}
