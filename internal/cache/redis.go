package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements a Redis-backed cache for multi-instance deployments
type RedisCache struct {
	client *redis.Client
	config Config
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Config holds common cache configuration
	Config Config
}

// NewRedisCache creates a new Redis cache and verifies the connection
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client, config: cfg.Config}, nil
}

// NewRedisCacheWithClient creates a new Redis cache with an existing client
func NewRedisCacheWithClient(client *redis.Client, config Config) *RedisCache {
	return &RedisCache{client: client, config: config}
}

// Get retrieves a value from the cache
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := r.config.Prefix + key

	value, err := r.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss{Key: key}
		}
		return nil, err
	}

	return value, nil
}

// Set stores a value in the cache with a TTL
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	fullKey := r.config.Prefix + key

	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}

	return r.client.Set(ctx, fullKey, value, ttl).Err()
}

// FlushAll removes all values under this cache's prefix. Other users of the
// same Redis instance are untouched.
func (r *RedisCache) FlushAll(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.config.Prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
