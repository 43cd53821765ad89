package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/logging"
)

// Keys under which catalog reads are cached.
const (
	KeyAllListings    = "catalog:listings:all"
	KeyCategoryCounts = "catalog:categories"
)

// CatalogCache holds JSON snapshots of the public catalog reads. A nil
// *CatalogCache is valid and caches nothing.
type CatalogCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogCache returns a cache backed by rdb. A nil rdb or non-positive
// ttl disables caching.
func NewCatalogCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &CatalogCache{rdb: rdb, ttl: ttl, logger: logging.OrNop(logger)}
}

// Get decodes the cached value at key into dest. It reports whether a value
// was found; Redis or decode failures are logged and count as a miss.
func (c *CatalogCache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("Catalog cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores value at key with the cache TTL. Failures are logged.
func (c *CatalogCache) Set(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Catalog cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every catalog entry.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, KeyAllListings, KeyCategoryCounts).Err(); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}
