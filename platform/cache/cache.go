// Package cache provides the read-through cache used for reference data.
// This is part of the platform layer and contains no business logic.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cultivation_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON-encoded values by key.
type Cache interface {
	// Get decodes the value at key into dest. It reports false on a miss.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// New returns a Redis cache when REDIS_URL is set and a no-op cache
// otherwise.
func New(cfg config.CacheConfig, prefix string) (Cache, error) {
	if cfg.GetRedisURL() == "" {
		return Nop{}, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opt), prefix), nil
}

// Redis is a Cache backed by a go-redis client.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. Every key is stored under prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete implements Cache.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Nop is a Cache that never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error               { return nil }
func (Nop) Close() error                                          { return nil }

var (
	_ Cache = (*Redis)(nil)
	_ Cache = Nop{}
)
