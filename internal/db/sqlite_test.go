package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_Hardened(t *testing.T) {
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", strings.ToLower(journalMode))

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestOpenSQLite_BadPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "audit.db"))
	require.Error(t, err)
}

func TestRunAuditMigrations_Idempotent(t *testing.T) {
	db := OpenTestSQLite(t)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM answer_log").Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, RunAuditMigrations(context.Background(), db))
}
