package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	internaldb "vidstats/internal/db"
)

// bootstrapDatabase migrates the schema and imports the dataset at path.
// With optional set, a missing dataset file is logged and skipped.
func bootstrapDatabase(ctx context.Context, pool *pgxpool.Pool, path string, force, optional bool, logger *slog.Logger) error {
	if err := internaldb.RunMigrations(ctx, pool); err != nil {
		return err
	}
	logger.Info("schema up to date")

	if _, err := os.Stat(path); err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			logger.Warn("dataset not found, skipping import", "path", path)
			return nil
		}
		return fmt.Errorf("dataset %s: %w", path, err)
	}

	stats, err := internaldb.ImportFile(ctx, pool, path, force)
	if err != nil {
		return err
	}
	if stats.Skipped {
		logger.Info("dataset already loaded, skipping import", "path", path)
	} else {
		logger.Info("dataset imported", "path", path, "videos", stats.Videos, "snapshots", stats.Snapshots)
	}
	return nil
}
