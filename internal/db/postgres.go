package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresOptions configures Connect.
type PostgresOptions struct {
	DSN        string
	MaxConns   int32
	Retries    int
	RetryDelay time.Duration
}

// Connect opens a pgx pool, retrying with a fixed delay while the database
// is not reachable yet (typical for a container starting alongside it).
func Connect(ctx context.Context, opts PostgresOptions, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		if attempt == opts.Retries {
			break
		}
		logger.Warn("database not ready", "attempt", attempt, "max_attempts", opts.Retries, "error", err)

		t := time.NewTimer(opts.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("connect to postgres: %w", ctx.Err())
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("connect to postgres after %d attempts: %w", opts.Retries, lastErr)
}
