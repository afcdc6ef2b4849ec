package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisOrderIndexCache struct {
	client *redis.Client
	key    string
}

func NewRedisOrderIndexCache(addr string, password string, db int) *RedisOrderIndexCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisOrderIndexCache{client: client, key: DisplayIndexKey}
}

func (c *RedisOrderIndexCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisOrderIndexCache) Close() error {
	return c.client.Close()
}

func (c *RedisOrderIndexCache) Get(ctx context.Context) ([]string, bool, error) {
	val, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(val), &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func (c *RedisOrderIndexCache) Set(ctx context.Context, ids []string, ttl time.Duration) error {
	if ids == nil {
		ids = []string{}
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, payload, ttl).Err()
}

func (c *RedisOrderIndexCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
