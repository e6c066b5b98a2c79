package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisCache is an implementation of Cache that uses Redis as the caching backend.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(cfg RedisConfig, logger *zap.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		client: client,
		logger: logger.With(zap.String("prefix", "REDIS")),
	}
}

// Set sets the value for the given key in the cache with the given expiration.
// A non-positive expiration keeps the key forever.
func (rc *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	rc.logger.Debug("setting value in redis",
		zap.String("key", key),
		zap.Duration("expiration", expiration))

	if expiration < 0 {
		expiration = 0
	}
	return rc.client.Set(ctx, key, value, expiration).Err()
}

// Get gets the value for the given key in the cache.
func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		rc.logger.Error("error during getting value from redis",
			zap.String("key", key),
			zap.Error(err))
		return nil, err
	}
	return val, nil
}

// Delete deletes the value for the given key in the cache.
func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, key).Err()
}

func (rc *RedisCache) Healthcheck(ctx context.Context) error {
	if _, err := rc.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("error connecting to Redis: %w", err)
	}
	return nil
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
