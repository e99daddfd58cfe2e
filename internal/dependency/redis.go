package dependency

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/k8s-test-service/internal/config"
)

// Redis probes a Redis server.
type Redis struct {
	client *redis.Client
}

// NewRedis returns nil when no address is configured.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not provided; redis readiness check disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}
	return &Redis{client: client}
}

// Name implements health.Checker.
func (r *Redis) Name() string { return "redis" }

// Check pings the server.
func (r *Redis) Check(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrNotConfigured
	}
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.client != nil {
		_ = r.client.Close()
	}
}
