package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/config"
)

// NewRedisClient creates and validates the client holding live session
// snapshots, the deadline index and the result queue.
// Callers treat a failure as fatal: live sessions exist only in Redis.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = applicationName
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return rdb, nil
}

// RedisProbe reports whether the client can still reach the server.
func RedisProbe(rdb redis.UniversalClient) Probe {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
