package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"stashbox/internal/config"
)

// NewPool creates a pgx connection pool from the database configuration,
// applying the pool tuning parameters and verifying connectivity with a ping.
// The caller owns the returned pool and must Close it on shutdown.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	// Verify connectivity eagerly so misconfiguration fails at startup, not on
	// the first request.
	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// PoolHealthProbe adapts a pgx pool to the health check interface exposed by
// the API chassis.
type PoolHealthProbe struct {
	pool *pgxpool.Pool
}

// NewPoolHealthProbe creates a health probe backed by the given pool.
func NewPoolHealthProbe(pool *pgxpool.Pool) *PoolHealthProbe {
	return &PoolHealthProbe{pool: pool}
}

// Name identifies the probe in health check responses.
func (p *PoolHealthProbe) Name() string { return "database" }

// Check pings the database, honoring the context deadline.
func (p *PoolHealthProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
