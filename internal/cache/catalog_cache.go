// Package cache holds the redis-backed catalog search cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sewabaju/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const versionKey = "catalog:version"

// CatalogCache caches search results. Every key embeds a version number,
// so bumping the version drops all cached searches at once.
// A nil client turns every method into a no-op.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewCatalogCache creates a CatalogCache. client may be nil.
func NewCatalogCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *CatalogCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogCache{client: client, ttl: ttl, log: log}
}

// NewClient connects to redis at addr and pings it.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *CatalogCache) key(ctx context.Context, query, category string) (string, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("catalog:v%d:search:%s|%s", version, category, query), nil
}

// GetSearch returns cached results and whether there was a hit.
func (c *CatalogCache) GetSearch(ctx context.Context, query, category string) ([]models.Garment, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	key, err := c.key(ctx, query, category)
	if err != nil {
		c.log.Warn("catalog cache unavailable", zap.Error(err))
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var garments []models.Garment
	if err := json.Unmarshal(data, &garments); err != nil {
		return nil, false
	}
	return garments, true
}

// SetSearch stores search results for the configured TTL.
func (c *CatalogCache) SetSearch(ctx context.Context, query, category string, garments []models.Garment) {
	if c == nil || c.client == nil {
		return
	}
	key, err := c.key(ctx, query, category)
	if err != nil {
		c.log.Warn("catalog cache unavailable", zap.Error(err))
		return
	}
	data, err := json.Marshal(garments)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached search.
func (c *CatalogCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		c.log.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
