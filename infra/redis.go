package infra

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tnqbao/gau-plugin-installer/config"
)

const attemptKeyPrefix = "installer:attempts:"

type RedisClient struct {
	Client *redis.Client
}

// InitRedisClient returns nil when no Redis host is configured.
func InitRedisClient(ctx context.Context, cfg *config.EnvConfig) (*RedisClient, error) {
	if cfg.Redis.RedisHost == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisHost + ":" + cfg.Redis.RedisPort,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Println("Connected to Redis:", cfg.Redis.RedisPort+" on "+cfg.Redis.RedisHost)

	return &RedisClient{Client: client}, nil
}

// IncrementAttempt bumps the delivery counter for key and returns the new
// value. The counter expires ttl after its last increment.
func (r *RedisClient) IncrementAttempt(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, attemptKeyPrefix+key)
		pipe.Expire(ctx, attemptKeyPrefix+key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts for %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (r *RedisClient) ClearAttempts(ctx context.Context, key string) error {
	return r.Client.Del(ctx, attemptKeyPrefix+key).Err()
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}
