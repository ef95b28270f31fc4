package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fastprodman/matrixledger/internal/config"
)

// Connect opens a redis client and verifies it with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
