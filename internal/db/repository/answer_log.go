// Package repository persists the answer log in SQLite.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vidstats/internal/domain"
)

// Compile-time check.
var _ domain.AnswerRecorder = (*AnswerLogRepo)(nil)

const defaultListLimit = 50

// createdAtLayout has a fixed-width fraction so stored values sort as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// AnswerLogRepo stores one row per answered question.
type AnswerLogRepo struct {
	db *sql.DB
}

// NewAnswerLogRepo creates an AnswerLogRepo over a migrated database.
func NewAnswerLogRepo(db *sql.DB) *AnswerLogRepo {
	return &AnswerLogRepo{db: db}
}

// Record inserts rec, assigning an id and timestamp when missing.
func (r *AnswerLogRepo) Record(ctx context.Context, rec *domain.AnswerRecord) error {
	if rec.ID == "" {
		rec.ID = domain.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO answer_log (
		id, request_id, question, strategy, path, plan_json, sql_text,
		answer, status, failure_kind, error, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.RequestID), rec.Question, rec.Strategy, rec.Path,
		rec.PlanJSON, rec.SQL, rec.Answer, rec.Status, rec.FailureKind, rec.Error,
		rec.DurationMs, rec.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return fmt.Errorf("insert answer log: %w", err)
	}
	return nil
}

// List returns the most recent records first.
func (r *AnswerLogRepo) List(ctx context.Context, filter domain.AnswerFilter) ([]domain.AnswerRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var statusFilter any
	if filter.Status != nil {
		statusFilter = *filter.Status
	}

	rows, err := r.db.QueryContext(ctx, `SELECT
		id, request_id, question, strategy, path, plan_json, sql_text,
		answer, status, failure_kind, error, duration_ms, created_at
	FROM answer_log
	WHERE (? IS NULL OR status = ?)
	ORDER BY created_at DESC, id DESC
	LIMIT ?`, statusFilter, statusFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("list answer log: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.AnswerRecord
	for rows.Next() {
		var (
			rec       domain.AnswerRecord
			requestID sql.NullString
			createdAt string
		)
		if err := rows.Scan(
			&rec.ID, &requestID, &rec.Question, &rec.Strategy, &rec.Path, &rec.PlanJSON, &rec.SQL,
			&rec.Answer, &rec.Status, &rec.FailureKind, &rec.Error, &rec.DurationMs, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan answer log: %w", err)
		}
		rec.RequestID = requestID.String
		if rec.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByStatus returns the number of records per status.
func (r *AnswerLogRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM answer_log GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count answer log: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan answer log count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
