// Package cache provides Redis-backed caching helpers for read projections.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache wraps Redis helpers for JSON payloads with a fixed TTL.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the
// key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.Client == nil || key == "" {
		return false, nil
	}
	data, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.Client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, data, c.TTL).Err()
}

// Invalidator removes every cached key under a scope after successful writes.
type Invalidator struct {
	Client *redis.Client
	Logger zerolog.Logger
}

// Invalidate drops all keys with the "<scope>:" prefix. It is fire-and-forget:
// failures are logged, never returned.
func (i Invalidator) Invalidate(ctx context.Context, scope string) {
	if i.Client == nil || scope == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	iter := i.Client.Scan(ctx, 0, scope+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		i.Logger.Warn().Err(err).Str("scope", scope).Msg("cache invalidation scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := i.Client.Del(ctx, keys...).Err(); err != nil {
		i.Logger.Warn().Err(err).Str("scope", scope).Msg("cache invalidation failed")
	}
}
