package domain

import (
	"context"
	"net/http"
)

// ScalarQuerier executes a read-only parameterized query and returns the
// single value of its first row. Implemented by engine.Executor.
type ScalarQuerier interface {
	QueryScalar(ctx context.Context, q CompiledQuery) (any, error)
}

// HTTPDoer is the outbound HTTP client used for model calls.
// *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AnswerRecorder persists one AnswerRecord per answered question.
// Implemented by repository.AuditRepo.
type AnswerRecorder interface {
	Record(ctx context.Context, rec *AnswerRecord) error
}
