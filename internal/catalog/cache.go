package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores product snapshots by product id.
type Cache interface {
	Get(ctx context.Context, productID uint) (Snapshot, bool, error)
	Set(ctx context.Context, s Snapshot) error
	Delete(ctx context.Context, productID uint) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func cacheKey(productID uint) string {
	return fmt.Sprintf("catalog:product:%d", productID)
}

func (c *RedisCache) Get(ctx context.Context, productID uint) (Snapshot, bool, error) {
	var s Snapshot
	raw, err := c.client.Get(ctx, cacheKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, false, err
	}
	return s, true, nil
}

func (c *RedisCache) Set(ctx context.Context, s Snapshot) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(s.ProductID), raw, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, productID uint) error {
	return c.client.Del(ctx, cacheKey(productID)).Err()
}

// NoCache is used when no Redis address is configured.
type NoCache struct{}

func (NoCache) Get(context.Context, uint) (Snapshot, bool, error) { return Snapshot{}, false, nil }
func (NoCache) Set(context.Context, Snapshot) error               { return nil }
func (NoCache) Delete(context.Context, uint) error                { return nil }
