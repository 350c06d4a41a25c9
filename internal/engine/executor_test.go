package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidstats/internal/domain"
)

type fakeRow struct {
	value any
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*any)) = r.value
	return nil
}

// fakeTx records statements; unimplemented pgx.Tx methods panic.
type fakeTx struct {
	pgx.Tx
	execs      []string
	query      string
	args       []any
	row        fakeRow
	rolledBack bool
}

func (tx *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	tx.execs = append(tx.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	tx.query, tx.args = sql, args
	return tx.row
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.rolledBack = true
	return nil
}

type fakeDB struct {
	tx   *fakeTx
	opts pgx.TxOptions
	err  error
}

func (db *fakeDB) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	db.opts = opts
	if db.err != nil {
		return nil, db.err
	}
	return db.tx, nil
}

func TestExecutor_QueryScalar(t *testing.T) {
	q := domain.CompiledQuery{SQL: "SELECT COUNT(*)::bigint AS value FROM videos WHERE creator_id = $1", Args: []any{"abc"}}

	t.Run("read_only_tx_with_limits", func(t *testing.T) {
		db := &fakeDB{tx: &fakeTx{row: fakeRow{value: int64(5)}}}
		got, err := NewExecutor(db, 20*time.Second).QueryScalar(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got)

		assert.Equal(t, pgx.ReadOnly, db.opts.AccessMode)
		assert.Equal(t, []string{"SET LOCAL statement_timeout = 20000", "SET LOCAL TimeZone = 'UTC'"}, db.tx.execs)
		assert.Equal(t, q.SQL, db.tx.query)
		assert.Equal(t, []any{"abc"}, db.tx.args)
		assert.True(t, db.tx.rolledBack)
	})

	t.Run("no_rows_is_null", func(t *testing.T) {
		db := &fakeDB{tx: &fakeTx{row: fakeRow{err: pgx.ErrNoRows}}}
		got, err := NewExecutor(db, 0).QueryScalar(context.Background(), q)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Equal(t, []string{"SET LOCAL TimeZone = 'UTC'"}, db.tx.execs)
	})

	t.Run("query_error", func(t *testing.T) {
		db := &fakeDB{tx: &fakeTx{row: fakeRow{err: errors.New("canceling statement due to statement timeout")}}}
		_, err := NewExecutor(db, time.Second).QueryScalar(context.Background(), q)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "statement timeout")
		assert.True(t, db.tx.rolledBack)
	})

	t.Run("begin_error", func(t *testing.T) {
		db := &fakeDB{err: errors.New("pool closed")}
		_, err := NewExecutor(db, time.Second).QueryScalar(context.Background(), q)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "begin read-only tx")
	})
}
