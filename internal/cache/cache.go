// Package cache implements the AvailabilityCache port (spec.md §4.3):
// read-through caching for client/RBT schedules and available-RBT sets,
// built out from the teacher's CacheRepository stub into a real
// redis-backed implementation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

const (
	NamespaceClientSchedule = "client-schedule"
	NamespaceRbtSchedule    = "rbt-schedule"
	NamespaceAvailableRbts  = "available-rbts"

	TTLClientSchedule = 30 * time.Minute
	TTLRbtSchedule    = 30 * time.Minute
	TTLAvailableRbts  = 5 * time.Minute
)

// AvailabilityCache is the cache port services depend on.
type AvailabilityCache interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error
	DeleteByPattern(ctx context.Context, namespace, pattern string) error
}

type redisCache struct {
	client *redis.Client
	logger *logger.Logger
}

func NewRedisCache(client *redis.Client, log *logger.Logger) AvailabilityCache {
	return &redisCache{client: client, logger: log}
}

func cacheKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

func (c *redisCache) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s/%s: %w", namespace, key, err)
	}
	return val, true, nil
}

func (c *redisCache) Set(ctx context.Context, namespace, key string, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, cacheKey(namespace, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, namespace, key string) error {
	if err := c.client.Del(ctx, cacheKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("cache delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// DeleteByPattern removes every key matching namespace:pattern. Redis has no
// glob DEL, so this walks the keyspace with SCAN (non-blocking, cursor-based)
// and removes matches with UNLINK (async reclaim, doesn't block the server
// on large value sizes the way DEL can).
func (c *redisCache) DeleteByPattern(ctx context.Context, namespace, pattern string) error {
	match := cacheKey(namespace, pattern)
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 200).Result()
		if err != nil {
			return fmt.Errorf("cache scan %s: %w", match, err)
		}
		if len(keys) > 0 {
			if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache unlink %s: %w", match, err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// noopCache satisfies AvailabilityCache when Redis is unavailable in
// development; every read misses and every write is a no-op, so callers
// fall back to the repository directly rather than panicking on a nil
// client.
type noopCache struct{}

// NewNoopCache returns a cache that never stores anything.
func NewNoopCache() AvailabilityCache {
	return noopCache{}
}

func (noopCache) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	return "", false, nil
}

func (noopCache) Set(ctx context.Context, namespace, key string, value string, ttl time.Duration) error {
	return nil
}

func (noopCache) Delete(ctx context.Context, namespace, key string) error { return nil }

func (noopCache) DeleteByPattern(ctx context.Context, namespace, pattern string) error { return nil }

// SafeInvalidate logs and swallows cache errors rather than failing the
// caller's operation (spec.md §4.3: "Cache failures are logged but never
// fail the parent operation").
func SafeInvalidate(ctx context.Context, c AvailabilityCache, log *logger.Logger, namespace, pattern string) {
	if c == nil {
		return
	}
	if err := c.DeleteByPattern(ctx, namespace, pattern); err != nil {
		log.Error("cache invalidation failed", "namespace", namespace, "pattern", pattern, "error", err)
	}
}
