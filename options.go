package expogate

import (
	"context"
	"log/slog"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port        int
	databaseURL string
	redisURL    string
	logger      *slog.Logger
	version     string
	cacheStore  CacheStore
	readLimit   int
	writeLimit  int
	rateWindow  time.Duration
}

// WithPort overrides the TCP port from config (EXPOGATE_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithRedisURL overrides the cache backend URL from config (REDIS_URL env var).
// An empty URL selects the in-process memory store.
func WithRedisURL(url string) Option {
	return func(o *resolvedOptions) { o.redisURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithCacheStore replaces the auto-selected cache backend (Redis or memory).
// The provided implementation must satisfy the CacheStore interface. The App
// takes ownership and closes it on shutdown.
func WithCacheStore(s CacheStore) Option {
	return func(o *resolvedOptions) { o.cacheStore = s }
}

// WithRateLimits overrides the admission budgets from config. The write
// budget must not exceed the read budget; New returns an error otherwise.
func WithRateLimits(read, write int, window time.Duration) Option {
	return func(o *resolvedOptions) {
		o.readLimit = read
		o.writeLimit = write
		o.rateWindow = window
	}
}

// CacheStore is the public cache backend contract for WithCacheStore.
// Implementations must be safe for concurrent use. Errors signal backend
// malfunction; the gateway treats them as misses rather than failing the
// request.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}
