// Package memory provides an in-process storage.Storage backed by
// github.com/hashicorp/golang-lru/v2 with TTL support.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ggoodman/fbsignedrequest/storage"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSweepInterval is how often expired entries are evicted.
const DefaultSweepInterval = 5 * time.Minute

// Storage implements storage.Storage in memory.
type Storage struct {
	cache *lru.Cache[string, *storage.StorageItem]

	stop     chan struct{}
	stopOnce sync.Once
}

var _ storage.Storage = (*Storage)(nil)

// New returns a Storage holding at most maxItems entries. Least recently used
// entries are evicted first.
func New(maxItems int) (*Storage, error) {
	cache, err := lru.New[string, *storage.StorageItem](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	s := &Storage{cache: cache, stop: make(chan struct{})}
	go s.sweep(DefaultSweepInterval)
	return s, nil
}

// Get returns the live item for key or nil.
func (s *Storage) Get(ctx context.Context, key string, opts ...storage.Option) (*storage.StorageItem, error) {
	k := buildKey(storage.Apply(opts...).Namespace, key)
	item, ok := s.cache.Get(k)
	if !ok {
		return nil, nil
	}
	if item.IsExpired() {
		s.cache.Remove(k)
		return nil, nil
	}
	return item, nil
}

// Set stores a private copy of data.
func (s *Storage) Set(ctx context.Context, key string, data []byte, opts ...storage.Option) error {
	o := storage.Apply(opts...)
	if o.TTL != nil && *o.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", storage.ErrInvalidOptions)
	}
	now := time.Now()
	item := &storage.StorageItem{
		Data:      append([]byte(nil), data...),
		CreatedAt: now,
	}
	if o.TTL != nil {
		exp := now.Add(*o.TTL)
		item.ExpiresAt = &exp
	}
	s.cache.Add(buildKey(o.Namespace, key), item)
	return nil
}

// Delete removes key.
func (s *Storage) Delete(ctx context.Context, key string, opts ...storage.Option) error {
	s.cache.Remove(buildKey(storage.Apply(opts...).Namespace, key))
	return nil
}

// Close stops the sweeper and drops every entry.
func (s *Storage) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.cache.Purge()
	return nil
}

// Len reports the number of entries, expired or not.
func (s *Storage) Len() int { return s.cache.Len() }

func buildKey(ns, key string) string {
	if ns == "" {
		return "global:" + key
	}
	return "ns:" + ns + ":" + key
}

func (s *Storage) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for _, k := range s.cache.Keys() {
				if item, ok := s.cache.Peek(k); ok && item.IsExpired() {
					s.cache.Remove(k)
				}
			}
		}
	}
}
