package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements an in-process cache with TTL support. It is the
// default backend for single-instance deployments.
type MemoryCache struct {
	data   sync.Map
	config Config
	now    func() time.Time
	cancel context.CancelFunc
}

// memoryItem represents an item stored in the cache
type memoryItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a new in-memory cache with default configuration
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithConfig(DefaultConfig())
}

// NewMemoryCacheWithConfig creates a new in-memory cache with custom configuration
func NewMemoryCacheWithConfig(config Config) *MemoryCache {
	ctx, cancel := context.WithCancel(context.Background())
	mc := &MemoryCache{
		config: config,
		now:    time.Now,
		cancel: cancel,
	}

	// Background sweep for expired items
	go mc.cleanupExpired(ctx)

	return mc
}

// WithClock replaces the cache's time source. Tests use this to advance time
// past entry expirations without sleeping.
func (m *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	m.now = now
	return m
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullKey := m.config.Prefix + key

	value, ok := m.data.Load(fullKey)
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}

	item := value.(memoryItem)
	if !item.expiration.IsZero() && m.now().After(item.expiration) {
		m.data.Delete(fullKey)
		return nil, ErrCacheMiss{Key: key}
	}

	return item.value, nil
}

// Set stores a value in the cache with a TTL
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullKey := m.config.Prefix + key

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiration = m.now().Add(ttl)
	}

	m.data.Store(fullKey, item)
	return nil
}

// FlushAll removes all values from the cache
func (m *MemoryCache) FlushAll(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.data.Range(func(key, value interface{}) bool {
		m.data.Delete(key)
		return true
	})
	return nil
}

// Close stops the background cleanup goroutine
func (m *MemoryCache) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// cleanupExpired periodically removes expired items from the cache
func (m *MemoryCache) cleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := m.now()
			m.data.Range(func(key, value interface{}) bool {
				item := value.(memoryItem)
				if !item.expiration.IsZero() && now.After(item.expiration) {
					m.data.Delete(key)
				}
				return true
			})
		}
	}
}
