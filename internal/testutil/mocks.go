// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"

	"vidstats/internal/domain"
	"vidstats/internal/llm"
)

// === Scalar Querier Mock ===

// MockQuerier implements domain.ScalarQuerier for testing.
type MockQuerier struct {
	QueryScalarFn func(ctx context.Context, q domain.CompiledQuery) (any, error)

	mu      sync.Mutex
	Queries []domain.CompiledQuery // collected queries for assertions
}

// QueryScalar implements the interface method for testing.
func (m *MockQuerier) QueryScalar(ctx context.Context, q domain.CompiledQuery) (any, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, q)
	m.mu.Unlock()
	if m.QueryScalarFn != nil {
		return m.QueryScalarFn(ctx, q)
	}
	panic("unexpected call to MockQuerier.QueryScalar")
}

var _ domain.ScalarQuerier = (*MockQuerier)(nil)

// === Answer Recorder Mock ===

// MockRecorder implements domain.AnswerRecorder for testing.
type MockRecorder struct {
	RecordFn func(ctx context.Context, rec *domain.AnswerRecord) error

	mu      sync.Mutex
	Records []*domain.AnswerRecord // collected records for assertions
}

// Record implements the interface method for testing.
func (m *MockRecorder) Record(ctx context.Context, rec *domain.AnswerRecord) error {
	m.mu.Lock()
	m.Records = append(m.Records, rec)
	m.mu.Unlock()
	if m.RecordFn != nil {
		return m.RecordFn(ctx, rec)
	}
	return nil
}

// LastRecord returns the last collected record, or nil if none.
func (m *MockRecorder) LastRecord() *domain.AnswerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Records) == 0 {
		return nil
	}
	return m.Records[len(m.Records)-1]
}

var _ domain.AnswerRecorder = (*MockRecorder)(nil)

// === Model Mocks ===

// MockCompleter implements llm.Completer for testing.
type MockCompleter struct {
	CompleteFn func(ctx context.Context, req llm.Request) (string, error)
	Calls      int
}

// Complete implements the interface method for testing.
func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.Calls++
	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, req)
	}
	panic("unexpected call to MockCompleter.Complete")
}

var _ llm.Completer = (*MockCompleter)(nil)

// MockPlanner implements the answer service's planner port for testing.
type MockPlanner struct {
	PlanFn func(ctx context.Context, question string) (*llm.PlanResult, error)
	Calls  int
}

// Plan implements the interface method for testing.
func (m *MockPlanner) Plan(ctx context.Context, question string) (*llm.PlanResult, error) {
	m.Calls++
	if m.PlanFn != nil {
		return m.PlanFn(ctx, question)
	}
	panic("unexpected call to MockPlanner.Plan")
}

// MockSQLBuilder implements the answer service's direct-SQL port for testing.
type MockSQLBuilder struct {
	ClassifyFn func(ctx context.Context, question string) (bool, error)
	BuildFn    func(ctx context.Context, question string) (domain.CompiledQuery, error)
	Calls      int
}

// Classify implements the interface method for testing.
func (m *MockSQLBuilder) Classify(ctx context.Context, question string) (bool, error) {
	m.Calls++
	if m.ClassifyFn != nil {
		return m.ClassifyFn(ctx, question)
	}
	panic("unexpected call to MockSQLBuilder.Classify")
}

// Build implements the interface method for testing.
func (m *MockSQLBuilder) Build(ctx context.Context, question string) (domain.CompiledQuery, error) {
	m.Calls++
	if m.BuildFn != nil {
		return m.BuildFn(ctx, question)
	}
	panic("unexpected call to MockSQLBuilder.Build")
}

// === Answerer Mock ===

// MockAnswerer implements the HTTP handler's answer port for testing.
type MockAnswerer struct {
	AnswerFn func(ctx context.Context, question string) string
}

// Answer implements the interface method for testing.
func (m *MockAnswerer) Answer(ctx context.Context, question string) string {
	if m.AnswerFn != nil {
		return m.AnswerFn(ctx, question)
	}
	panic("unexpected call to MockAnswerer.Answer")
}

// === Answer Log Mock ===

// MockAnswerLog implements the HTTP handler's history port for testing.
type MockAnswerLog struct {
	ListFn          func(ctx context.Context, filter domain.AnswerFilter) ([]domain.AnswerRecord, error)
	CountByStatusFn func(ctx context.Context) (map[string]int64, error)
}

// List implements the interface method for testing.
func (m *MockAnswerLog) List(ctx context.Context, filter domain.AnswerFilter) ([]domain.AnswerRecord, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	panic("unexpected call to MockAnswerLog.List")
}

// CountByStatus implements the interface method for testing.
func (m *MockAnswerLog) CountByStatus(ctx context.Context) (map[string]int64, error) {
	if m.CountByStatusFn != nil {
		return m.CountByStatusFn(ctx)
	}
	panic("unexpected call to MockAnswerLog.CountByStatus")
}
