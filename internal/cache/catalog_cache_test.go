package cache_test

import (
	"context"
	"testing"
	"time"

	"sewabaju/internal/cache"
	"sewabaju/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestCatalogCache_NilClientIsNoop(t *testing.T) {
	c := cache.NewCatalogCache(nil, time.Minute, nil)
	ctx := context.Background()

	c.SetSearch(ctx, "kebaya", "", []models.Garment{{ID: "g1"}})
	got, ok := c.GetSearch(ctx, "kebaya", "")
	assert.False(t, ok)
	assert.Nil(t, got)
	c.Invalidate(ctx)
}

func TestCatalogCache_UnreachableRedisMisses(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := cache.NewCatalogCache(client, time.Minute, nil)
	ctx := context.Background()

	c.SetSearch(ctx, "kebaya", "", []models.Garment{{ID: "g1"}})
	_, ok := c.GetSearch(ctx, "kebaya", "")
	assert.False(t, ok)
	c.Invalidate(ctx)
}
