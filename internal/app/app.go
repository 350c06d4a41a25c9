// Package app wires configuration, storage, the model client and the answer
// service into a runnable application.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"vidstats/internal/api"
	"vidstats/internal/config"
	"vidstats/internal/db/repository"
	"vidstats/internal/domain"
	"vidstats/internal/engine"
	"vidstats/internal/llm"
	"vidstats/internal/middleware"
	"vidstats/internal/service/answer"
)

// Database is the Postgres handle the app needs. *pgxpool.Pool satisfies it.
type Database interface {
	engine.TxBeginner
	Ping(ctx context.Context) error
}

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg        *config.Config
	DB         Database
	AuditDB    *sql.DB         // nil disables the answer log
	HTTPClient domain.HTTPDoer // nil uses http.DefaultClient
	Logger     *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Answers   *answer.Service
	AnswerLog *repository.AnswerLogRepo // nil when the answer log is disabled
	Limiter   *middleware.Limiter
	Handler   http.Handler

	cfg    *config.Config
	logger *slog.Logger
}

// New wires the executor, model client, planner, SQL builder, answer log and
// HTTP router from the provided deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if deps.DB == nil {
		return nil, errors.New("app: database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	strategy, err := answer.ParseStrategy(cfg.LLM.Strategy)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	client := llm.NewClient(llm.Options{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		SiteURL:     cfg.LLM.SiteURL,
		SiteName:    cfg.LLM.SiteName,
		Timeout:     cfg.LLM.Timeout,
		MaxAttempts: cfg.LLM.MaxRetries,
		BaseDelay:   cfg.LLM.RetryBaseDelay,
		MaxDelay:    cfg.LLM.RetryMaxDelay,
		RateLimit:   cfg.LLM.RateLimitRPS,
	}, deps.HTTPClient, logger)

	a := &App{cfg: cfg, logger: logger}

	var recorder domain.AnswerRecorder
	var history api.HistoryReader
	if deps.AuditDB != nil {
		a.AnswerLog = repository.NewAnswerLogRepo(deps.AuditDB)
		recorder = a.AnswerLog
		history = a.AnswerLog
	}

	a.Answers = answer.New(answer.Deps{
		Querier:     engine.NewExecutor(deps.DB, cfg.DB.StatementTimeout),
		Planner:     llm.NewPlanner(client),
		Builder:     llm.NewSQLBuilder(client),
		Recorder:    recorder,
		Strategy:    strategy,
		MaxInflight: cfg.MaxInflight,
		Logger:      logger,
	})

	if cfg.RateLimitRPS > 0 {
		a.Limiter = middleware.NewLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		})
	}

	handler := api.NewHandler(a.Answers, history, deps.DB, logger.With("component", "api"))
	a.Handler = api.NewRouter(handler, api.RouterOptions{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Limiter:            a.Limiter,
		AccessLog:          true,
	})
	return a, nil
}

// shutdownTimeout bounds how long in-flight requests may finish after ctx
// is canceled.
const shutdownTimeout = 15 * time.Second

// Serve runs the HTTP API on ln until ctx is canceled, then drains
// in-flight requests.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("HTTP API listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	if a.Limiter != nil {
		g.Go(func() error {
			a.Limiter.Janitor(gctx, time.Minute)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP API")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ListenAndServe listens on the configured address and calls Serve.
func (a *App) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}
