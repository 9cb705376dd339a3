// Package storage defines the key/value contract used to cache enriched
// profiles between requests. Backends live in storage/memory and
// storage/redis.
package storage

import (
	"context"
	"errors"
	"time"
)

// Storage is a namespaced byte store with optional per-item TTL.
type Storage interface {
	// Get returns the item stored under key, or nil when the key is missing
	// or expired. An error is returned only for backend failures.
	Get(ctx context.Context, key string, opts ...Option) (*StorageItem, error)

	// Set stores data under key, replacing any previous value.
	Set(ctx context.Context, key string, data []byte, opts ...Option) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string, opts ...Option) error

	// Close releases backend resources.
	Close() error
}

// StorageItem represents a stored piece of data with metadata
type StorageItem struct {
	Data      []byte
	CreatedAt time.Time
	ExpiresAt *time.Time // nil = no expiration
}

// IsExpired checks if the item has expired
func (si *StorageItem) IsExpired() bool {
	return si.ExpiresAt != nil && time.Now().After(*si.ExpiresAt)
}

// Option configures storage operations
type Option func(*Options)

// Options contains configuration for storage operations
type Options struct {
	Namespace string         // empty = global
	TTL       *time.Duration // only honoured by Set
}

// Apply folds opts into a fresh Options value.
func Apply(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithNamespace scopes an operation to ns, typically an app id.
func WithNamespace(ns string) Option {
	return func(o *Options) { o.Namespace = ns }
}

// WithTTL sets a time-to-live for the stored data
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) { o.TTL = &ttl }
}

// ErrInvalidOptions is returned when an option value cannot be honoured.
var ErrInvalidOptions = errors.New("storage: invalid option combination")
