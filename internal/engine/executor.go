// Package engine runs compiled scalar queries against Postgres inside
// read-only transactions and renders the result as answer text.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"vidstats/internal/domain"
)

// Compile-time check.
var _ domain.ScalarQuerier = (*Executor)(nil)

// TxBeginner is the part of *pgxpool.Pool the executor uses.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Executor runs one query per read-only transaction.
type Executor struct {
	db        TxBeginner
	statement time.Duration
}

// NewExecutor creates an Executor. A positive statementTimeout is applied
// per transaction with SET LOCAL.
func NewExecutor(db TxBeginner, statementTimeout time.Duration) *Executor {
	return &Executor{db: db, statement: statementTimeout}
}

// QueryScalar executes q and returns the first column of the first row.
// The transaction is always rolled back; an empty result yields nil.
func (e *Executor) QueryScalar(ctx context.Context, q domain.CompiledQuery) (any, error) {
	tx, err := e.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if e.statement > 0 {
		// SET does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", e.statement.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("set statement timeout: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, "SET LOCAL TimeZone = 'UTC'"); err != nil {
		return nil, fmt.Errorf("set time zone: %w", err)
	}

	var value any
	if err := tx.QueryRow(ctx, q.SQL, q.Args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return value, nil
}
