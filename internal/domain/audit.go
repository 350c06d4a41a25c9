package domain

import "time"

// Answer outcome labels.
const (
	AnswerStatusOK     = "OK"
	AnswerStatusFailed = "FAILED"
)

// AnswerRecord is the audit trail of one question.
type AnswerRecord struct {
	ID          string
	RequestID   string
	Question    string
	Strategy    string // "plan" or "sql"
	Path        string // "heuristic", "model" or "none"
	PlanJSON    *string
	SQL         *string
	Answer      string
	Status      string
	FailureKind *string
	Error       *string
	DurationMs  int64
	CreatedAt   time.Time
}

// AnswerFilter narrows an answer log listing.
type AnswerFilter struct {
	Status *string // AnswerStatusOK or AnswerStatusFailed, nil for both
	Limit  int     // 0 means 50
}
