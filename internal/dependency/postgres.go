// Package dependency holds optional backing services whose reachability gates readiness.
// The service stores nothing in them.
package dependency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/k8s-test-service/internal/config"
)

// startupPingTimeout bounds the connectivity log line emitted at startup.
const startupPingTimeout = 3 * time.Second

// ErrNotConfigured is returned by probes that were never connected.
var ErrNotConfigured = errors.New("dependency not configured")

// Postgres probes a database through a small pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres builds a pool when a DSN is provided and returns nil otherwise. The pool
// connects lazily, so an unreachable database fails readiness rather than startup.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Info("POSTGRES_DSN not provided; postgres readiness check disabled")
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	poolCfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("postgres not reachable yet", zap.Error(err))
	} else {
		logger.Info("connected to postgres")
	}
	return &Postgres{pool: pool}, nil
}

// Name implements health.Checker.
func (p *Postgres) Name() string { return "postgres" }

// Check pings the database.
func (p *Postgres) Check(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return ErrNotConfigured
	}
	return p.pool.Ping(ctx)
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}
