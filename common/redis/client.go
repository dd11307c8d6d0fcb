package redis

import (
	"context"
	"fmt"
	"time"

	"india-blood-connect/common/config"

	"github.com/go-redis/redis/v8"
)

// Client is an alias so callers don't import go-redis just for the type.
type Client = redis.Client

// Connect creates a client from cfg and pings it.
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
