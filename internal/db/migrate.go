package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations executes all pending goose migrations for the video dataset
// against Postgres.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close() //nolint:errcheck
	return up(ctx, sqlDB, "postgres", "migrations/postgres")
}

// RunAuditMigrations executes all pending goose migrations against the
// SQLite answer log.
func RunAuditMigrations(ctx context.Context, db *sql.DB) error {
	return up(ctx, db, "sqlite3", "migrations/audit")
}

func up(ctx context.Context, db *sql.DB, dialect, dir string) error {
	goose.SetBaseFS(EmbedMigrations)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose up %s: %w", dir, err)
	}

	return nil
}
