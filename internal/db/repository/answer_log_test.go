package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "vidstats/internal/db"
	"vidstats/internal/domain"
)

func setupAnswerLogRepo(t *testing.T) *AnswerLogRepo {
	t.Helper()
	return NewAnswerLogRepo(internaldb.OpenTestSQLite(t))
}

func strPtr(s string) *string { return &s }

func makeRecord(question, status string, at time.Time) *domain.AnswerRecord {
	rec := &domain.AnswerRecord{
		Question:   question,
		Strategy:   "plan",
		Path:       "heuristic",
		PlanJSON:   strPtr(`{"source":"videos","aggregation":"count_rows"}`),
		SQL:        strPtr("SELECT COUNT(*)::bigint AS value FROM videos"),
		Answer:     "42",
		Status:     status,
		DurationMs: 7,
		CreatedAt:  at,
	}
	if status == domain.AnswerStatusFailed {
		rec.Answer = "0"
		rec.FailureKind = strPtr("model_unavailable")
		rec.Error = strPtr("model request failed after 4 attempts")
	}
	return rec
}

func TestAnswerLogRepo_RecordAndList(t *testing.T) {
	repo := setupAnswerLogRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Record(ctx, makeRecord("first", domain.AnswerStatusOK, base)))
	require.NoError(t, repo.Record(ctx, makeRecord("second", domain.AnswerStatusFailed, base.Add(time.Minute))))

	records, err := repo.List(ctx, domain.AnswerFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].Question, "newest first")
	assert.Equal(t, base.Add(time.Minute), records[0].CreatedAt)
	require.NotNil(t, records[0].FailureKind)
	assert.Equal(t, "model_unavailable", *records[0].FailureKind)
	assert.Nil(t, records[1].FailureKind)
	assert.NotEmpty(t, records[1].ID)
	assert.Empty(t, records[1].RequestID)
}

func TestAnswerLogRepo_FilterAndLimit(t *testing.T) {
	repo := setupAnswerLogRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := range 3 {
		require.NoError(t, repo.Record(ctx, makeRecord("ok", domain.AnswerStatusOK, base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, repo.Record(ctx, makeRecord("bad", domain.AnswerStatusFailed, base)))

	failed, err := repo.List(ctx, domain.AnswerFilter{Status: strPtr(domain.AnswerStatusFailed)})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "bad", failed[0].Question)

	limited, err := repo.List(ctx, domain.AnswerFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"OK": 3, "FAILED": 1}, counts)
}

func TestAnswerLogRepo_RejectsUnknownStatus(t *testing.T) {
	repo := setupAnswerLogRepo(t)
	err := repo.Record(context.Background(), makeRecord("x", "MAYBE", time.Now()))
	require.Error(t, err)
}
