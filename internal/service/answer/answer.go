// Package answer turns a natural-language question into exactly one number.
package answer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"vidstats/internal/domain"
	"vidstats/internal/engine"
	"vidstats/internal/heuristic"
	"vidstats/internal/llm"
	"vidstats/internal/plan"
)

// Strategy selects how the model is asked to interpret a question.
type Strategy string

// Strategies.
const (
	StrategyPlan Strategy = "plan"
	StrategySQL  Strategy = "sql"
)

// ParseStrategy maps a config value to a Strategy; "" means plan.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyPlan:
		return StrategyPlan, nil
	case StrategySQL:
		return StrategySQL, nil
	default:
		return "", domain.ErrValidation("unknown strategy %q (want plan or sql)", s)
	}
}

// Resolution paths.
const (
	PathHeuristic = "heuristic"
	PathModel     = "model"
	PathNone      = "none"
)

// Failure kinds attached to failed answers.
const (
	FailureInvalidPlan      = "invalid_plan"
	FailureUnsafeSQL        = "unsafe_sql"
	FailureModelUnavailable = "model_unavailable"
	FailureNotConfigured    = "model_not_configured"
	FailureOffTopic         = "off_topic"
	FailureExecution        = "execution"
	FailureCanceled         = "canceled"
	FailureInternal         = "internal"
)

var errOffTopic = errors.New("question is not about video metrics")

// Planner produces a compiled plan from a question.
type Planner interface {
	Plan(ctx context.Context, question string) (*llm.PlanResult, error)
}

// SQLBuilder produces validated SQL from a question.
type SQLBuilder interface {
	Classify(ctx context.Context, question string) (bool, error)
	Build(ctx context.Context, question string) (domain.CompiledQuery, error)
}

// Deps holds the collaborators of a Service. Recorder is optional; Planner
// or Builder may be nil when the matching strategy is not used.
type Deps struct {
	Querier     domain.ScalarQuerier
	Planner     Planner
	Builder     SQLBuilder
	Recorder    domain.AnswerRecorder
	Strategy    Strategy
	MaxInflight int64
	Logger      *slog.Logger
}

// Service answers questions. It is safe for concurrent use.
type Service struct {
	querier  domain.ScalarQuerier
	planner  Planner
	builder  SQLBuilder
	recorder domain.AnswerRecorder
	strategy Strategy
	inflight *semaphore.Weighted
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	strategy := d.Strategy
	if strategy == "" {
		strategy = StrategyPlan
	}
	s := &Service{
		querier:  d.Querier,
		planner:  d.Planner,
		builder:  d.Builder,
		recorder: d.Recorder,
		strategy: strategy,
		logger:   logger.With("component", "answer"),
		now:      time.Now,
	}
	if d.MaxInflight > 0 {
		s.inflight = semaphore.NewWeighted(d.MaxInflight)
	}
	return s
}

// resolution is what a question turned into before execution.
type resolution struct {
	path  string
	plan  *domain.QueryPlan
	query domain.CompiledQuery
}

// Answer returns the numeric answer as text. It never fails: every
// failure is logged once and answered with "0".
func (s *Service) Answer(ctx context.Context, question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return "0"
	}

	start := s.now()
	if s.inflight != nil {
		if err := s.inflight.Acquire(ctx, 1); err != nil {
			s.finish(ctx, question, start, resolution{path: PathNone}, "0", err, FailureCanceled)
			return "0"
		}
		defer s.inflight.Release(1)
	}

	res, err := s.resolve(ctx, question)
	if err != nil {
		s.finish(ctx, question, start, res, "0", err, failureKind(err))
		return "0"
	}

	value, err := s.querier.QueryScalar(ctx, res.query)
	if err != nil {
		kind := FailureExecution
		if ctx.Err() != nil {
			kind = FailureCanceled
		}
		s.finish(ctx, question, start, res, "0", err, kind)
		return "0"
	}

	answer := engine.Stringify(value)
	s.finish(ctx, question, start, res, answer, nil, "")
	return answer
}

// resolve finds a query for question: the heuristic parser first, the
// model only on a miss.
func (s *Service) resolve(ctx context.Context, question string) (resolution, error) {
	if hit, ok := heuristic.Parse(question); ok {
		if q, err := plan.Compile(hit.Plan); err == nil {
			return resolution{path: PathHeuristic, plan: hit.Plan, query: q}, nil
		}
	}

	switch s.strategy {
	case StrategySQL:
		if s.builder == nil {
			return resolution{path: PathNone}, llm.ErrNotConfigured
		}
		metric, err := s.builder.Classify(ctx, question)
		if err != nil {
			return resolution{path: PathModel}, err
		}
		if !metric {
			return resolution{path: PathModel}, errOffTopic
		}
		q, err := s.builder.Build(ctx, question)
		if err != nil {
			return resolution{path: PathModel}, err
		}
		return resolution{path: PathModel, query: q}, nil
	default:
		if s.planner == nil {
			return resolution{path: PathNone}, llm.ErrNotConfigured
		}
		pr, err := s.planner.Plan(ctx, question)
		if err != nil {
			return resolution{path: PathModel}, err
		}
		return resolution{path: PathModel, plan: pr.Plan, query: pr.Query}, nil
	}
}

func failureKind(err error) string {
	var (
		planErr   *domain.PlanError
		safetyErr *domain.SQLSafetyError
		transient *domain.TransientError
	)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return FailureNotConfigured
	case errors.Is(err, errOffTopic):
		return FailureOffTopic
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	case errors.As(err, &transient):
		return FailureModelUnavailable
	case errors.As(err, &safetyErr):
		return FailureUnsafeSQL
	case errors.As(err, &planErr):
		return FailureInvalidPlan
	default:
		return FailureInternal
	}
}

// finish emits the single log record for a question and hands the same
// facts to the recorder.
func (s *Service) finish(ctx context.Context, question string, start time.Time, res resolution, answer string, err error, kind string) {
	elapsed := s.now().Sub(start).Milliseconds()
	rec := &domain.AnswerRecord{
		ID:         domain.NewID(),
		RequestID:  domain.RequestIDFromContext(ctx),
		Question:   question,
		Strategy:   string(s.strategy),
		Path:       res.path,
		Answer:     answer,
		Status:     domain.AnswerStatusOK,
		DurationMs: elapsed,
		CreatedAt:  start.UTC(),
	}
	attrs := []any{
		"question", question,
		"strategy", rec.Strategy,
		"path", rec.Path,
		"elapsed_ms", elapsed,
	}
	if rec.RequestID != "" {
		attrs = append(attrs, "request_id", rec.RequestID)
	}
	if res.plan != nil {
		if b, mErr := json.Marshal(res.plan); mErr == nil {
			planJSON := string(b)
			rec.PlanJSON = &planJSON
			attrs = append(attrs, "plan", planJSON)
		}
	}
	if res.query.SQL != "" {
		sql := res.query.SQL
		rec.SQL = &sql
		attrs = append(attrs, "sql", sql)
	}

	if err != nil {
		msg := err.Error()
		rec.Status = domain.AnswerStatusFailed
		rec.FailureKind = &kind
		rec.Error = &msg
		attrs = append(attrs, "failure_kind", kind, "error", msg)
		s.logger.ErrorContext(ctx, "question failed", attrs...)
	} else {
		attrs = append(attrs, "answer", answer)
		s.logger.InfoContext(ctx, "question answered", attrs...)
	}

	if s.recorder != nil {
		// The request may already be canceled; the audit row is still wanted.
		if rErr := s.recorder.Record(context.WithoutCancel(ctx), rec); rErr != nil {
			s.logger.WarnContext(ctx, "record answer", "error", rErr)
		}
	}
}
