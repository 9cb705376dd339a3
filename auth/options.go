package auth

import (
	"log/slog"
	"time"

	"github.com/ggoodman/fbsignedrequest/graph"
	"github.com/ggoodman/fbsignedrequest/provider"
	"github.com/ggoodman/fbsignedrequest/storage"
)

// DefaultMaxBodyBytes bounds how much of a JSON request body is read when
// extracting credentials.
const DefaultMaxBodyBytes = 64 << 10

// Option configures optional aspects of a Strategy.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	client       provider.Client
	graphOpts    []graph.Option
	cache        storage.Storage
	cacheTTL     time.Duration
	now          func() time.Time
	maxBodyBytes int64
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProvider replaces the default Graph API client. The strategy uses it
// for signed request verification and profile fetches.
func WithProvider(c provider.Client) Option {
	return func(o *options) { o.client = c }
}

// WithGraphOptions configures the default Graph API client. Ignored when
// WithProvider is used.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(o *options) { o.graphOpts = append(o.graphOpts, opts...) }
}

// WithProfileCache caches enriched profiles in s for ttl. Entries are keyed by
// a digest of the access token and requested fields; raw tokens are never
// stored. A non-positive ttl disables caching.
func WithProfileCache(s storage.Storage, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = s
		o.cacheTTL = ttl
	}
}

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMaxBodyBytes bounds how much of a JSON body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBodyBytes = n }
}
