package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/custodia-platform/custodia-backend/internal/infrastructure/config"
)

// Key prefixes for the cache namespaces.
const (
	RateLimitPrefix = "custodia:ratelimit:"
	SessionPrefix   = "custodia:session:"
)

// NewClient creates the Redis client from configuration.
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("redis client initialized", zap.Int("db", cfg.DB))
	return client, nil
}
