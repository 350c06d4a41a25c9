package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"vidstats/internal/domain"
	"vidstats/internal/sqlguard"
)

// SQLBuilder asks the model to write SQL directly and validates it.
type SQLBuilder struct {
	model Completer
	now   func() time.Time
}

// NewSQLBuilder creates an SQLBuilder over the given model.
func NewSQLBuilder(model Completer) *SQLBuilder {
	return &SQLBuilder{model: model, now: time.Now}
}

// Classify reports whether question is about video metrics at all. A reply
// that is neither YES nor NO counts as NO.
func (b *SQLBuilder) Classify(ctx context.Context, question string) (bool, error) {
	text, err := b.model.Complete(ctx, Request{System: classifyPrompt, User: question})
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "YES"), nil
}

// Build returns validated SQL for question. When the first candidate is
// rejected the model gets one repair attempt with the question, the
// rejected SQL and the validator's reason.
func (b *SQLBuilder) Build(ctx context.Context, question string) (domain.CompiledQuery, error) {
	system := SQLPrompt(b.now())

	candidate, err := b.request(ctx, system, question)
	if err != nil {
		return domain.CompiledQuery{}, err
	}
	q, err := sqlguard.Validate(candidate)
	if err == nil {
		return q, nil
	}
	var safety *domain.SQLSafetyError
	if !errors.As(err, &safety) {
		return domain.CompiledQuery{}, err
	}

	repaired, err := b.request(ctx, system, RepairPrompt(question, candidate, safety))
	if err != nil {
		return domain.CompiledQuery{}, err
	}
	return sqlguard.Validate(repaired)
}

func (b *SQLBuilder) request(ctx context.Context, system, user string) (string, error) {
	text, err := b.model.Complete(ctx, Request{System: system, User: user})
	if err != nil {
		return "", err
	}
	return sqlguard.Extract(text), nil
}
