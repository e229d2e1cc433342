// Package cache provides the shared Redis tier of the extraction cache.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	pkgcache "tracker_server/pkg/cache"
	"tracker_server/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "tracker:extract:"
	DefaultTTL       = 7 * 24 * time.Hour
)

// entryStore is the JSON key-value surface the shared tier needs.
type entryStore interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// RedisExtractionCache shares validated extraction results between processes.
// Redis failures and entries that no longer pass validation degrade to misses.
type RedisExtractionCache struct {
	cache  entryStore
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewRedisExtractionCache(client *redis.Client, ttl time.Duration) *RedisExtractionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisExtractionCache{
		cache:  pkgcache.NewRedisCache(client),
		prefix: DefaultKeyPrefix,
		ttl:    ttl,
	}
}

func (c *RedisExtractionCache) key(hash string) string {
	return c.prefix + hash
}

func (c *RedisExtractionCache) Get(ctx context.Context, hash string) (*domain.ExtractionResult, bool) {
	var result domain.ExtractionResult
	found, err := c.cache.GetJSON(ctx, c.key(hash), &result)
	if err != nil {
		logger.Warn("[RedisExtractionCache.Get] %s: %v", hash, err)
	}
	if err != nil || !found {
		c.misses.Add(1)
		return nil, false
	}
	if err := result.Validate(); err != nil {
		logger.Warn("[RedisExtractionCache.Get] ignoring invalid entry %s: %v", hash, err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &result, true
}

func (c *RedisExtractionCache) Put(ctx context.Context, hash string, result *domain.ExtractionResult) {
	if result == nil {
		return
	}
	if err := c.cache.SetJSON(ctx, c.key(hash), result, c.ttl); err != nil {
		logger.Warn("[RedisExtractionCache.Put] %s: %v", hash, err)
	}
}

func (c *RedisExtractionCache) Clear(ctx context.Context) {
	n, err := c.cache.DeletePrefix(ctx, c.prefix)
	if err != nil {
		logger.Warn("[RedisExtractionCache.Clear] removed %d keys before failing: %v", n, err)
		return
	}
	logger.Info("[RedisExtractionCache.Clear] removed %d keys", n)
}

// Stats reports this process's hit and miss counts. Size is not tracked for the shared tier.
func (c *RedisExtractionCache) Stats() out.CacheStats {
	return out.CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

var _ out.ExtractionCache = (*RedisExtractionCache)(nil)
