package answer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidstats/internal/domain"
	"vidstats/internal/llm"
	"vidstats/internal/service/answer"
	"vidstats/internal/testutil"
)

// logLines decodes every JSON log record written to buf.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestAnswer_HeuristicHitSkipsModel(t *testing.T) {
	var buf bytes.Buffer
	querier := &testutil.MockQuerier{QueryScalarFn: func(context.Context, domain.CompiledQuery) (any, error) {
		return int64(358), nil
	}}
	planner := &testutil.MockPlanner{}
	recorder := &testutil.MockRecorder{}

	svc := answer.New(answer.Deps{
		Querier: querier, Planner: planner, Recorder: recorder, Logger: newLogger(&buf),
	})
	got := svc.Answer(context.Background(), "Сколько всего видео есть в системе?")

	assert.Equal(t, "358", got)
	assert.Zero(t, planner.Calls)
	require.Len(t, querier.Queries, 1)
	assert.Equal(t, "SELECT COUNT(*)::bigint AS value FROM videos", querier.Queries[0].SQL)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "heuristic", lines[0]["path"])
	assert.Equal(t, "358", lines[0]["answer"])
	assert.Contains(t, lines[0], "elapsed_ms")

	rec := recorder.LastRecord()
	require.NotNil(t, rec)
	assert.Equal(t, domain.AnswerStatusOK, rec.Status)
	require.NotNil(t, rec.PlanJSON)
	assert.Contains(t, *rec.PlanJSON, `"source":"videos"`)
}

func TestAnswer_ModelPlan(t *testing.T) {
	var buf bytes.Buffer
	querier := &testutil.MockQuerier{QueryScalarFn: func(context.Context, domain.CompiledQuery) (any, error) {
		var n pgtype.Numeric
		require.NoError(t, n.Scan("12.340"))
		return n, nil
	}}
	planner := &testutil.MockPlanner{PlanFn: func(context.Context, string) (*llm.PlanResult, error) {
		return &llm.PlanResult{
			Plan:  &domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggSum, Field: "likes_count"},
			Query: domain.CompiledQuery{SQL: "SELECT COALESCE(SUM(likes_count), 0)::bigint AS value FROM videos", Args: []any{}},
		}, nil
	}}

	svc := answer.New(answer.Deps{Querier: querier, Planner: planner, Logger: newLogger(&buf)})
	got := svc.Answer(context.Background(), "Какое среднее число лайков?")

	assert.Equal(t, "12.34", got)
	assert.Equal(t, 1, planner.Calls)
	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "model", lines[0]["path"])
	assert.Equal(t, "plan", lines[0]["strategy"])
}

func TestAnswer_ModelUnavailable(t *testing.T) {
	var buf bytes.Buffer
	planner := &testutil.MockPlanner{PlanFn: func(context.Context, string) (*llm.PlanResult, error) {
		return nil, &domain.TransientError{Attempts: 4, Err: errors.New("HTTP 503")}
	}}
	querier := &testutil.MockQuerier{}
	recorder := &testutil.MockRecorder{}

	svc := answer.New(answer.Deps{Querier: querier, Planner: planner, Recorder: recorder, Logger: newLogger(&buf)})
	const question = "Что-то совсем необычное про видео?"
	got := svc.Answer(context.Background(), question)

	assert.Equal(t, "0", got)
	assert.Empty(t, querier.Queries)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1, "exactly one record per failed question")
	assert.Equal(t, "ERROR", lines[0]["level"])
	assert.Equal(t, question, lines[0]["question"])
	assert.Equal(t, answer.FailureModelUnavailable, lines[0]["failure_kind"])

	rec := recorder.LastRecord()
	require.NotNil(t, rec)
	assert.Equal(t, domain.AnswerStatusFailed, rec.Status)
	require.NotNil(t, rec.FailureKind)
	assert.Equal(t, answer.FailureModelUnavailable, *rec.FailureKind)
}

func TestAnswer_Failures(t *testing.T) {
	tests := []struct {
		name     string
		deps     func() answer.Deps
		question string
		wantKind string
	}{
		{
			name: "invalid model plan",
			deps: func() answer.Deps {
				return answer.Deps{Planner: &testutil.MockPlanner{PlanFn: func(context.Context, string) (*llm.PlanResult, error) {
					return nil, domain.ErrPlan("unsupported aggregation %q", "avg")
				}}}
			},
			question: "Среднее число просмотров?",
			wantKind: answer.FailureInvalidPlan,
		},
		{
			name:     "no planner configured",
			deps:     func() answer.Deps { return answer.Deps{} },
			question: "Среднее число просмотров?",
			wantKind: answer.FailureNotConfigured,
		},
		{
			name: "off topic in sql strategy",
			deps: func() answer.Deps {
				return answer.Deps{Strategy: answer.StrategySQL, Builder: &testutil.MockSQLBuilder{
					ClassifyFn: func(context.Context, string) (bool, error) { return false, nil },
				}}
			},
			question: "Привет, как дела?",
			wantKind: answer.FailureOffTopic,
		},
		{
			name: "unsafe sql",
			deps: func() answer.Deps {
				return answer.Deps{Strategy: answer.StrategySQL, Builder: &testutil.MockSQLBuilder{
					ClassifyFn: func(context.Context, string) (bool, error) { return true, nil },
					BuildFn: func(context.Context, string) (domain.CompiledQuery, error) {
						return domain.CompiledQuery{}, domain.ErrSQLSafety("only SELECT is allowed")
					},
				}}
			},
			question: "Удалить все видео",
			wantKind: answer.FailureUnsafeSQL,
		},
		{
			name: "execution error",
			deps: func() answer.Deps {
				return answer.Deps{Querier: &testutil.MockQuerier{QueryScalarFn: func(context.Context, domain.CompiledQuery) (any, error) {
					return nil, errors.New("connection refused")
				}}}
			},
			question: "Сколько всего видео есть в системе?",
			wantKind: answer.FailureExecution,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			d := tc.deps()
			d.Logger = newLogger(&buf)
			if d.Querier == nil {
				d.Querier = &testutil.MockQuerier{}
			}

			got := answer.New(d).Answer(context.Background(), tc.question)
			assert.Equal(t, "0", got)

			lines := logLines(t, &buf)
			require.Len(t, lines, 1)
			assert.Equal(t, "ERROR", lines[0]["level"])
			assert.Equal(t, tc.wantKind, lines[0]["failure_kind"])
			assert.Equal(t, tc.question, lines[0]["question"])
		})
	}
}

func TestAnswer_SQLStrategy(t *testing.T) {
	var buf bytes.Buffer
	builder := &testutil.MockSQLBuilder{
		ClassifyFn: func(context.Context, string) (bool, error) { return true, nil },
		BuildFn: func(context.Context, string) (domain.CompiledQuery, error) {
			return domain.CompiledQuery{SQL: "SELECT AVG(views_count) AS value FROM videos", Args: []any{}}, nil
		},
	}
	querier := &testutil.MockQuerier{QueryScalarFn: func(context.Context, domain.CompiledQuery) (any, error) {
		return 1234.5, nil
	}}

	svc := answer.New(answer.Deps{Strategy: answer.StrategySQL, Builder: builder, Querier: querier, Logger: newLogger(&buf)})
	assert.Equal(t, "1234.5", svc.Answer(context.Background(), "Среднее число просмотров на видео?"))
	assert.Equal(t, 2, builder.Calls)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "sql", lines[0]["strategy"])
	assert.Equal(t, "SELECT AVG(views_count) AS value FROM videos", lines[0]["sql"])
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	var buf bytes.Buffer
	svc := answer.New(answer.Deps{
		Querier: &testutil.MockQuerier{}, Planner: &testutil.MockPlanner{}, Logger: newLogger(&buf),
	})
	assert.Equal(t, "0", svc.Answer(context.Background(), "   \n\t"))
	assert.Empty(t, buf.String())
}

func TestAnswer_NullResultIsZero(t *testing.T) {
	querier := &testutil.MockQuerier{QueryScalarFn: func(context.Context, domain.CompiledQuery) (any, error) {
		return nil, nil
	}}
	svc := answer.New(answer.Deps{Querier: querier, Logger: newLogger(&bytes.Buffer{})})
	assert.Equal(t, "0", svc.Answer(context.Background(), "Сколько всего видео есть в системе?"))
}

func TestAnswer_RequestIDRecorded(t *testing.T) {
	recorder := &testutil.MockRecorder{}
	querier := &testutil.MockQuerier{QueryScalarFn: func(context.Context, domain.CompiledQuery) (any, error) {
		return int64(1), nil
	}}
	svc := answer.New(answer.Deps{Querier: querier, Recorder: recorder, Logger: newLogger(&bytes.Buffer{})})

	ctx := domain.WithRequestID(context.Background(), "req-1")
	svc.Answer(ctx, "Сколько всего видео есть в системе?")

	rec := recorder.LastRecord()
	require.NotNil(t, rec)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.NotEmpty(t, rec.ID)
}

func TestParseStrategy(t *testing.T) {
	s, err := answer.ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, answer.StrategyPlan, s)

	s, err = answer.ParseStrategy(" SQL ")
	require.NoError(t, err)
	assert.Equal(t, answer.StrategySQL, s)

	_, err = answer.ParseStrategy("magic")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}
