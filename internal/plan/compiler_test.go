package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidstats/internal/domain"
)

func int64p(n int64) *int64 { return &n }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCompile_Accepted(t *testing.T) {
	tests := []struct {
		name     string
		plan     domain.QueryPlan
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "count all videos",
			plan:     domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggCountRows, Field: "*"},
			wantSQL:  "SELECT COUNT(*)::bigint AS value FROM videos",
			wantArgs: []any{},
		},
		{
			name:     "count rows with an allowed field",
			plan:     domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggCountRows, Field: "id"},
			wantSQL:  "SELECT COUNT(*)::bigint AS value FROM videos",
			wantArgs: []any{},
		},
		{
			name: "creator and publication range",
			plan: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows,
				Filters: []domain.Filter{
					{Field: "creator_id", Op: domain.OpEq, Value: "abc123"},
					{Field: "video_created_at", Op: domain.OpDateBetween, From: "2025-11-01", To: "2025-11-05"},
				},
			},
			wantSQL: "SELECT COUNT(*)::bigint AS value FROM videos WHERE creator_id = $1 " +
				"AND video_created_at::date BETWEEN $2::date AND $3::date",
			wantArgs: []any{"abc123", date(2025, 11, 1), date(2025, 11, 5)},
		},
		{
			name: "threshold on final views",
			plan: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows,
				Filters: []domain.Filter{{Field: "views_count", Op: domain.OpGt, Value: "+100 000"}},
			},
			wantSQL:  "SELECT COUNT(*)::bigint AS value FROM videos WHERE views_count > $1",
			wantArgs: []any{int64(100000)},
		},
		{
			name: "delta sum on one day",
			plan: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggSum, Field: "delta_views_count",
				Filters: []domain.Filter{{Field: "created_at", Op: domain.OpDateOn, Value: "2025-11-28"}},
			},
			wantSQL:  "SELECT COALESCE(SUM(delta_views_count), 0)::bigint AS value FROM video_snapshots WHERE created_at::date = $1::date",
			wantArgs: []any{date(2025, 11, 28)},
		},
		{
			name: "distinct videos with new views",
			plan: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggCountDistinct, Field: "video_id",
				Filters: []domain.Filter{
					{Field: "delta_views_count", Op: domain.OpGt, Value: 0},
					{Field: "created_at", Op: domain.OpDateOn, Value: "2025-11-27"},
				},
			},
			wantSQL: "SELECT COUNT(DISTINCT video_id)::bigint AS value FROM video_snapshots " +
				"WHERE delta_views_count > $1 AND created_at::date = $2::date",
			wantArgs: []any{int64(0), date(2025, 11, 27)},
		},
		{
			name: "date equality compares calendar dates",
			plan: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows,
				Filters: []domain.Filter{{Field: "video_created_at", Op: domain.OpEq, Value: "2025-11-03T15:04:05Z"}},
			},
			wantSQL:  "SELECT COUNT(*)::bigint AS value FROM videos WHERE video_created_at::date = $1::date",
			wantArgs: []any{date(2025, 11, 3)},
		},
		{
			name: "windowed delta sum",
			plan: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggSumDeltaInWindow,
				Field: "delta_views_count", Hours: int64p(3),
			},
			wantSQL: "SELECT COALESCE(SUM(s.delta_views_count), 0)::bigint AS value " +
				"FROM video_snapshots s JOIN videos v ON v.id = s.video_id " +
				"WHERE s.created_at >= v.video_created_at " +
				"AND s.created_at <= v.video_created_at + ($1::int * INTERVAL '1 hour')",
			wantArgs: []any{int64(3)},
		},
		{
			name: "windowed alias with snapshot filter",
			plan: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggSumDeltaFirstHour,
				Field: "delta_likes_count", Hours: int64p(24),
				Filters: []domain.Filter{{Field: "created_at", Op: domain.OpDateOn, Value: "2025-11-28"}},
			},
			wantSQL: "SELECT COALESCE(SUM(s.delta_likes_count), 0)::bigint AS value " +
				"FROM video_snapshots s JOIN videos v ON v.id = s.video_id " +
				"WHERE s.created_at >= v.video_created_at " +
				"AND s.created_at <= v.video_created_at + ($1::int * INTERVAL '1 hour') " +
				"AND s.created_at::date = $2::date",
			wantArgs: []any{int64(24), date(2025, 11, 28)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compile(&tc.plan)
			require.NoError(t, err)
			assert.Equal(t, tc.wantSQL, got.SQL)
			assert.Equal(t, tc.wantArgs, got.Args)
			assert.Equal(t, len(got.Args), Placeholders(got.SQL), "placeholder count must match args")
		})
	}
}

func TestCompile_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		plan    domain.QueryPlan
		wantMsg string
	}{
		{
			name:    "unknown source",
			plan:    domain.QueryPlan{Source: "users", Aggregation: domain.AggCountRows},
			wantMsg: "source must be",
		},
		{
			name:    "unknown aggregation",
			plan:    domain.QueryPlan{Source: domain.SourceVideos, Aggregation: "avg"},
			wantMsg: "unsupported aggregation",
		},
		{
			name:    "count rows on unknown field",
			plan:    domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggCountRows, Field: "password_hash"},
			wantMsg: "not allowed for videos",
		},
		{
			name:    "count rows on field of the other source",
			plan:    domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggCountRows, Field: "delta_views_count"},
			wantMsg: "not allowed for videos",
		},
		{
			name:    "hours on plain sum",
			plan:    domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggSum, Field: "views_count", Hours: int64p(5)},
			wantMsg: "hours is only allowed for sum_delta_in_window",
		},
		{
			name:    "hours on count rows",
			plan:    domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggCountRows, Hours: int64p(5)},
			wantMsg: "hours is only allowed",
		},
		{
			name: "hours on count distinct",
			plan: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggCountDistinct, Field: "video_id", Hours: int64p(24),
			},
			wantMsg: "hours is only allowed",
		},
		{
			name:    "count distinct needs a field",
			plan:    domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggCountDistinct, Field: "*"},
			wantMsg: "field is required",
		},
		{
			name:    "count distinct on foreign field",
			plan:    domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggCountDistinct, Field: "video_id"},
			wantMsg: "not allowed for videos",
		},
		{
			name:    "sum on identifier",
			plan:    domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggSum, Field: "creator_id"},
			wantMsg: "must be numeric",
		},
		{
			name:    "sum on delta field of primary source",
			plan:    domain.QueryPlan{Source: domain.SourceVideos, Aggregation: domain.AggSum, Field: "delta_views_count"},
			wantMsg: "not a numeric metric",
		},
		{
			name: "window on primary source",
			plan: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggSumDeltaInWindow,
				Field: "delta_views_count", Hours: int64p(3),
			},
			wantMsg: "requires source=video_snapshots",
		},
		{
			name: "window on non-delta field",
			plan: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggSumDeltaInWindow,
				Field: "views_count", Hours: int64p(3),
			},
			wantMsg: "delta_* metric",
		},
		{
			name: "window with zero hours",
			plan: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggSumDeltaInWindow,
				Field: "delta_views_count", Hours: int64p(0),
			},
			wantMsg: "hours must be > 0",
		},
		{
			name: "window with negative hours",
			plan: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggSumDeltaInWindow,
				Field: "delta_views_count", Hours: int64p(-5),
			},
			wantMsg: "hours must be > 0",
		},
		{
			name: "window without hours",
			plan: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggSumDeltaInWindow, Field: "delta_views_count",
			},
			wantMsg: "hours is required",
		},
		{
			name: "filter on unknown field",
			plan: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows,
				Filters: []domain.Filter{{Field: "title; DROP TABLE videos", Op: domain.OpEq, Value: "x"}},
			},
			wantMsg: "not allowed for videos",
		},
		{
			name: "unknown operator",
			plan: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows,
				Filters: []domain.Filter{{Field: "views_count", Op: "like", Value: 1}},
			},
			wantMsg: "unsupported operator",
		},
		{
			name: "date operator on numeric field",
			plan: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows,
				Filters: []domain.Filter{{Field: "views_count", Op: domain.OpDateOn, Value: "2025-11-01"}},
			},
			wantMsg: "only for date fields",
		},
		{
			name: "date between missing bound",
			plan: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows,
				Filters: []domain.Filter{{Field: "video_created_at", Op: domain.OpDateBetween, From: "2025-11-01"}},
			},
			wantMsg: "requires from and to",
		},
		{
			name: "date between reversed",
			plan: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows,
				Filters: []domain.Filter{{Field: "video_created_at", Op: domain.OpDateBetween, From: "2025-11-05", To: "2025-11-01"}},
			},
			wantMsg: "reversed",
		},
		{
			name: "boolean threshold",
			plan: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows,
				Filters: []domain.Filter{{Field: "views_count", Op: domain.OpGt, Value: true}},
			},
			wantMsg: "invalid number value",
		},
		{
			name: "garbage date",
			plan: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggCountRows,
				Filters: []domain.Filter{{Field: "created_at", Op: domain.OpDateOn, Value: "28 ноября"}},
			},
			wantMsg: "invalid date value",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compile(&tc.plan)
			require.Error(t, err)
			var pe *domain.PlanError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, err.Error(), tc.wantMsg)
			assert.Empty(t, got.SQL, "no partial SQL on failure")
			assert.Nil(t, got.Args)
		})
	}
}

func TestCompile_NilPlan(t *testing.T) {
	_, err := Compile(nil)
	var pe *domain.PlanError
	require.ErrorAs(t, err, &pe)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, 0, Placeholders("SELECT 1"))
	assert.Equal(t, 3, Placeholders("a = $1 AND b BETWEEN $2::date AND $3::date"))
}
