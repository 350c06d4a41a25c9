package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidstats/internal/domain"
)

func TestSQLBuilder_Classify(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"YES", true},
		{"  yes, it is", true},
		{"NO", false},
		{"maybe", false},
		{"", false},
	}
	for _, tc := range tests {
		m := &scriptedModel{replies: []scriptedReply{{text: tc.reply}}}
		got, err := NewSQLBuilder(m).Classify(context.Background(), "привет")
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "reply %q", tc.reply)
		assert.Equal(t, classifyPrompt, m.calls[0].System)
	}

	m := &scriptedModel{replies: []scriptedReply{{err: errors.New("down")}}}
	_, err := NewSQLBuilder(m).Classify(context.Background(), "q")
	require.Error(t, err)
}

func TestSQLBuilder_Build(t *testing.T) {
	t.Run("valid_first_candidate", func(t *testing.T) {
		m := &scriptedModel{replies: []scriptedReply{
			{text: "<think>hmm</think>```sql\nSELECT COUNT(*)::bigint AS value FROM videos;\n```"},
		}}
		b := NewSQLBuilder(m)
		b.now = fixedNow

		q, err := b.Build(context.Background(), "Сколько видео?")
		require.NoError(t, err)
		assert.Equal(t, "SELECT COUNT(*)::bigint AS value FROM videos", q.SQL)
		assert.Empty(t, q.Args)
		require.Len(t, m.calls, 1)
		assert.Contains(t, m.calls[0].System, "2025-12-01")
	})

	t.Run("one_repair_round_trip", func(t *testing.T) {
		m := &scriptedModel{replies: []scriptedReply{
			{text: "DELETE FROM videos"},
			{text: "SELECT COUNT(*)::bigint AS value FROM videos"},
		}}
		q, err := NewSQLBuilder(m).Build(context.Background(), "Сколько видео?")
		require.NoError(t, err)
		assert.Equal(t, "SELECT COUNT(*)::bigint AS value FROM videos", q.SQL)

		require.Len(t, m.calls, 2)
		repair := m.calls[1].User
		assert.Contains(t, repair, "Сколько видео?")
		assert.Contains(t, repair, "DELETE FROM videos")
		assert.Contains(t, repair, "only SELECT")
	})

	t.Run("repair_rejected", func(t *testing.T) {
		m := &scriptedModel{replies: []scriptedReply{
			{text: "SELECT * FROM pg_user"},
			{text: "SELECT pg_sleep(10) FROM videos"},
		}}
		_, err := NewSQLBuilder(m).Build(context.Background(), "q")
		var se *domain.SQLSafetyError
		require.ErrorAs(t, err, &se)
		assert.Len(t, m.calls, 2)
	})

	t.Run("model_failure_skips_repair", func(t *testing.T) {
		m := &scriptedModel{replies: []scriptedReply{{err: &domain.TransientError{Attempts: 4, Err: errors.New("timeout")}}}}
		_, err := NewSQLBuilder(m).Build(context.Background(), "q")
		var te *domain.TransientError
		require.ErrorAs(t, err, &te)
		assert.Len(t, m.calls, 1)
	})
}
