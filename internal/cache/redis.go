package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resumecook/billing/internal/config"
	"github.com/resumecook/billing/internal/logger"
)

const ExpiryDefaultRedis = 5 * time.Minute

// RedisCache implements the Cache interface using Redis
type RedisCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg *config.Configuration, log *logger.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &RedisCache{client: client, log: log}
}

// Get retrieves a value from the cache
func (c *RedisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Errorw("redis GET error", "key", key, "error", err)
		}
		return nil, false
	}
	return value, true
}

// Set adds a value to the cache with the specified expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	if expiration == 0 {
		expiration = ExpiryDefaultRedis
	}

	var strValue string
	switch v := value.(type) {
	case string:
		strValue = v
	default:
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			c.log.Errorw("redis SET marshal error", "key", key, "error", err)
			return
		}
		strValue = string(jsonBytes)
	}

	if err := c.client.Set(ctx, key, strValue, expiration).Err(); err != nil {
		c.log.Errorw("redis SET error", "key", key, "error", err)
	}
}

// Delete removes a value from the cache
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Errorw("redis DEL error", "key", key, "error", err)
	}
}
