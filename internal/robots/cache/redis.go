package cache

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps cached snapshot extractions for a week.
const DefaultTTL = 7 * 24 * time.Hour

// RedisCache persists extraction results across runs.
// Redis failures degrade to cache misses and are only logged at DEBUG.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *log.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// NewRedisCacheFromAddr dials lazily; the first command opens the connection.
func NewRedisCacheFromAddr(addr string, ttl time.Duration, logger *log.Logger) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
		MaxRetries:  1,
	})
	return NewRedisCache(rdb, ttl, logger)
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("redis cache get failed", "key", key, "err", err)
		}
		return "", false
	}
	return val, true
}

func (c *RedisCache) Put(ctx context.Context, key string, value string) {
	if err := c.client.SetEx(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Debug("redis cache put failed", "key", key, "err", err)
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
