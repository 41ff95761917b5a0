package keycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is where the public key is cached in Redis.
const DefaultRedisKey = "glhm:auth:public_key"

// Redis caches the public key in Redis so several client processes share one fetch.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis creates a Redis-backed key cache. An empty key uses DefaultRedisKey.
func NewRedis(client redis.UniversalClient, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Get(ctx context.Context) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, v != "", nil
}

func (r *Redis) Set(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 || key == "" {
		return r.Invalidate(ctx)
	}
	if err := r.client.Set(ctx, r.key, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
