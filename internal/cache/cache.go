package cache

import (
	"context"
	"time"
)

// Cache defines the contract the catalog engine needs from a cache backend:
// read, write with TTL, and blanket invalidation. Per-key deletion is
// deliberately absent; mutations flush everything (see FlushAll).
type Cache interface {
	// Get retrieves a value from the cache. Returns ErrCacheMiss when the key
	// is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache. A zero ttl falls back to the
	// configured default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// FlushAll removes every entry owned by this cache. The catalog key space
	// is parameterized by arbitrary filters and search terms, so selective
	// invalidation is intractable; every mutation flushes the whole cache.
	FlushAll(ctx context.Context) error
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL is the time-to-live applied when Set is called with ttl 0
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "toolhub:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	_, ok := err.(ErrCacheMiss)
	return ok
}
