package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// MarkEventProcessed records a webhook event id so redeliveries can be
// short-circuited. Returns false if the id was already recorded.
func (c *Client) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("webhook:event:%s", eventID), "1", ttl).Result()
}

// CacheStorefront stores a storefront projection under its slug.
func (c *Client) CacheStorefront(ctx context.Context, slug string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, storefrontKey(slug), data, ttl).Err()
}

// GetStorefront loads a cached storefront projection into dest. Returns false
// on a cache miss.
func (c *Client) GetStorefront(ctx context.Context, slug string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, storefrontKey(slug)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// InvalidateStorefront drops the cached projection for a slug.
func (c *Client) InvalidateStorefront(ctx context.Context, slug string) error {
	return c.rdb.Del(ctx, storefrontKey(slug)).Err()
}

func storefrontKey(slug string) string {
	return fmt.Sprintf("storefront:%s", slug)
}
