// Package cli implements the vidstats command line: the HTTP server, one-off
// questions, schema migrations and dataset import.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"vidstats/internal/config"
	internaldb "vidstats/internal/db"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if getOutputFormat(rootCmd) == "json" {
			_ = printJSON(os.Stdout, map[string]any{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// runtime is the state shared by subcommands. Config and logger are
// resolved once per invocation; commands that need neither never load them.
type runtime struct {
	envFile  string
	logLevel string
	stderr   io.Writer

	cfg    *config.Config
	logger *slog.Logger
}

// config loads .env, the optional YAML file and the environment, then
// builds the JSON logger and reports loader warnings through it.
func (rt *runtime) config() (*config.Config, error) {
	if rt.cfg != nil {
		return rt.cfg, nil
	}
	if rt.envFile != "" {
		if err := config.LoadDotEnv(rt.envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if rt.logLevel != "" {
		cfg.LogLevel = rt.logLevel
	}
	rt.cfg = cfg
	rt.logger = slog.New(slog.NewJSONHandler(rt.stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		rt.logger.Warn("config", "warning", w)
	}
	return cfg, nil
}

func (rt *runtime) connect(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := rt.config()
	if err != nil {
		return nil, err
	}
	return internaldb.Connect(ctx, internaldb.PostgresOptions{
		DSN:        cfg.DB.DSN(),
		MaxConns:   cfg.DB.MaxConns,
		Retries:    cfg.DB.ConnectRetries,
		RetryDelay: cfg.DB.ConnectRetryDelay,
	}, rt.logger.With("component", "db"))
}

// openAnswerLog opens and migrates the SQLite answer log. It returns nil
// when AUDIT_DB_PATH is empty.
func (rt *runtime) openAnswerLog(ctx context.Context) (*sql.DB, error) {
	cfg, err := rt.config()
	if err != nil {
		return nil, err
	}
	if cfg.AuditDBPath == "" {
		return nil, nil
	}
	db, err := internaldb.OpenSQLite(ctx, cfg.AuditDBPath)
	if err != nil {
		return nil, err
	}
	if err := internaldb.RunAuditMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newRootCmd() *cobra.Command {
	rt := &runtime{stderr: os.Stderr}
	var output string

	rootCmd := &cobra.Command{
		Use:           "vidstats",
		Short:         "Answer questions about video metrics with one number",
		Long:          "vidstats turns Russian natural-language questions about video statistics into a single number computed in Postgres.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt.stderr = cmd.ErrOrStderr()
			return validateOutputFormat(output)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "Dotenv file loaded before the environment (missing is fine)")
	rootCmd.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(rt),
		newAskCmd(rt),
		newPlanCmd(rt),
		newMigrateCmd(rt),
		newImportCmd(rt),
		newHistoryCmd(rt),
		newVersionCmd(),
	)
	return rootCmd
}
