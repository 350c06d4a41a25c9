// Package domain defines core types, interfaces, and errors for the stats service.
package domain

import "fmt"

// ValidationError indicates invalid caller input (e.g. a malformed HTTP body).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// PlanError indicates a structural or semantic violation in a query plan:
// unknown source, field, aggregation or operator, a missing required
// argument, or a field used outside its type class. It is terminal and is
// never retried.
type PlanError struct {
	Message string
	Err     error
}

func (e *PlanError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *PlanError) Unwrap() error { return e.Err }

// SQLSafetyError indicates candidate SQL failed one of the safety rules.
type SQLSafetyError struct {
	Message string
}

func (e *SQLSafetyError) Error() string { return e.Message }

// InvalidValueError indicates a filter literal could not be normalized.
type InvalidValueError struct {
	Kind  string // "number" or "date"
	Value any
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s value: %v", e.Kind, e.Value)
}

// TransientError indicates a model call failed after all retry attempts.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("model request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrPlan creates a PlanError with a formatted message.
func ErrPlan(format string, args ...interface{}) *PlanError {
	return &PlanError{Message: fmt.Sprintf(format, args...)}
}

// ErrSQLSafety creates a SQLSafetyError with a formatted message.
func ErrSQLSafety(format string, args ...interface{}) *SQLSafetyError {
	return &SQLSafetyError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidValue creates an InvalidValueError for the given kind and raw value.
func ErrInvalidValue(kind string, value any) *InvalidValueError {
	return &InvalidValueError{Kind: kind, Value: value}
}
