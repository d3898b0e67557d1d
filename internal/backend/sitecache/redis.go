package sitecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sitegallery:mapping:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(config Config) (*RedisCache, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("redis cache requires an address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Address, err)
	}

	return &RedisCache{client: client, ttl: config.TTL}, nil
}

func (c *RedisCache) Get(ctx context.Context, identifier string) (string, bool, error) {
	site, err := c.client.Get(ctx, keyPrefix+identifier).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return site, true, nil
}

func (c *RedisCache) Set(ctx context.Context, identifier, site string) error {
	return c.client.Set(ctx, keyPrefix+identifier, site, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
