package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidstats/internal/domain"
	"vidstats/internal/plan"
)

func int64p(n int64) *int64 { return &n }

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		question  string
		wantShape string
		want      domain.QueryPlan
	}{
		{
			name:      "total count",
			question:  "Сколько всего видео есть в системе?",
			wantShape: "total_count",
			want: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows,
				Field: "*", Filters: []domain.Filter{},
			},
		},
		{
			name:      "delta sum on one date",
			question:  "На сколько просмотров в сумме выросли все видео 28 ноября 2025?",
			wantShape: "delta_sum",
			want: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggSum, Field: "delta_views_count",
				Filters: []domain.Filter{{Field: "created_at", Op: domain.OpDateOn, Value: "2025-11-28"}},
			},
		},
		{
			name:      "creator with short date range",
			question:  "Сколько видео у креатора с id abc123 вышло с 1 по 5 ноября 2025?",
			wantShape: "creator_date_range",
			want: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows, Field: "*",
				Filters: []domain.Filter{
					{Field: "creator_id", Op: domain.OpEq, Value: "abc123"},
					{Field: "video_created_at", Op: domain.OpDateBetween, From: "2025-11-01", To: "2025-11-05"},
				},
			},
		},
		{
			name:      "creator with range across months",
			question:  "Сколько видео у креатора с id Ab-9f вышло с 28 октября по 3 ноября 2025 включительно?",
			wantShape: "creator_date_range",
			want: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows, Field: "*",
				Filters: []domain.Filter{
					{Field: "creator_id", Op: domain.OpEq, Value: "Ab-9f"},
					{Field: "video_created_at", Op: domain.OpDateBetween, From: "2025-10-28", To: "2025-11-03"},
				},
			},
		},
		{
			name:      "creator threshold ignores digits in the id",
			question:  "Сколько видео у креатора с id abc123456789 набрали больше 10 000 просмотров?",
			wantShape: "creator_threshold",
			want: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows, Field: "*",
				Filters: []domain.Filter{
					{Field: "creator_id", Op: domain.OpEq, Value: "abc123456789"},
					{Field: "views_count", Op: domain.OpGt, Value: int64(10000)},
				},
			},
		},
		{
			name:      "global threshold",
			question:  "Сколько видео набрало больше 100 000 просмотров за всё время?",
			wantShape: "global_threshold",
			want: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows, Field: "*",
				Filters: []domain.Filter{{Field: "views_count", Op: domain.OpGt, Value: int64(100000)}},
			},
		},
		{
			name:      "global threshold with at-least wording",
			question:  "Сколько видео набрали не менее 500 лайков?",
			wantShape: "global_threshold",
			want: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggCountRows, Field: "*",
				Filters: []domain.Filter{{Field: "likes_count", Op: domain.OpGte, Value: int64(500)}},
			},
		},
		{
			name:      "distinct videos with new views",
			question:  "Сколько разных видео получали новые просмотры 27 ноября 2025?",
			wantShape: "distinct_with_new",
			want: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggCountDistinct, Field: "video_id",
				Filters: []domain.Filter{
					{Field: "delta_views_count", Op: domain.OpGt, Value: int64(0)},
					{Field: "created_at", Op: domain.OpDateOn, Value: "2025-11-27"},
				},
			},
		},
		{
			name:      "first hours window",
			question:  "Какой суммарный прирост просмотров получили все видео за первые 3 часа после публикации?",
			wantShape: "first_hours_window",
			want: domain.QueryPlan{
				Source: domain.SourceSnapshots, Aggregation: domain.AggSumDeltaInWindow,
				Field: "delta_views_count", Hours: int64p(3), Filters: []domain.Filter{},
			},
		},
		{
			name:      "total likes",
			question:  "Сколько всего лайков набрали все видео?",
			wantShape: "total_metric_sum",
			want: domain.QueryPlan{
				Source: domain.SourceVideos, Aggregation: domain.AggSum,
				Field: "likes_count", Filters: []domain.Filter{},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Parse(tc.question)
			require.True(t, ok)
			assert.Equal(t, tc.wantShape, got.Shape)
			assert.Equal(t, tc.want, *got.Plan)

			// Every heuristic plan must compile.
			_, err := plan.Compile(got.Plan)
			require.NoError(t, err)
		})
	}
}

func TestParse_Misses(t *testing.T) {
	tests := []struct {
		name     string
		question string
	}{
		{"empty", ""},
		{"whitespace", "   \t "},
		{"unrelated", "Какая сегодня погода?"},
		{"delta sum without date", "На сколько просмотров в сумме выросли все видео?"},
		{"creator without id", "Сколько видео у креатора вышло с 1 по 5 ноября 2025?"},
		{"impossible day", "На сколько лайков в сумме выросли все видео 31 ноября 2025?"},
		{"unknown month", "На сколько лайков в сумме выросли все видео 3 брюмера 2025?"},
		{"threshold without metric", "Сколько видео набрали больше 100?"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := Parse(tc.question)
			assert.False(t, ok)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "сколько всего видео", Normalize("  Сколько\tВСЕГО\n видео "))
	assert.Equal(t, "за все время", Normalize("за всё время"))
	assert.Equal(t, "", Normalize(""))
}

func TestExtractNumber(t *testing.T) {
	n, ok := extractNumber("в 2025 году больше 100 000 просмотров")
	require.True(t, ok)
	assert.Equal(t, int64(100000), n)

	_, ok = extractNumber("без чисел")
	assert.False(t, ok)
}
