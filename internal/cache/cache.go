// Package cache keeps hot API responses in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockpulse/internal/models"

	redis "github.com/redis/go-redis/v9"
)

// Cache stores trending snapshots with a short TTL. A nil *Cache is a
// disabled cache: every method is a safe no-op, so callers never branch
// on whether Redis is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at addr. An empty addr returns nil, which
// disables caching.
func New(addr, password string, db int, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Cache{client: client, ttl: ttl}
}

// Ping verifies the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis PING: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// GetTrending returns the cached trending list for a (hours, limit)
// query. A nil slice with nil error is a cache miss.
func (c *Cache) GetTrending(ctx context.Context, hours, limit int) ([]models.TrendingTicker, error) {
	if c == nil {
		return nil, nil
	}
	key := trendingKey(hours, limit)
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	var trending []models.TrendingTicker
	if err := json.Unmarshal([]byte(data), &trending); err != nil {
		return nil, fmt.Errorf("unmarshal cached trending: %w", err)
	}
	if trending == nil {
		trending = []models.TrendingTicker{}
	}
	return trending, nil
}

// SetTrending caches a trending list under its (hours, limit) query.
func (c *Cache) SetTrending(ctx context.Context, hours, limit int, trending []models.TrendingTicker) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(trending)
	if err != nil {
		return fmt.Errorf("marshal trending: %w", err)
	}
	key := trendingKey(hours, limit)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func trendingKey(hours, limit int) string {
	return fmt.Sprintf("stockpulse:trending:%d:%d", hours, limit)
}
