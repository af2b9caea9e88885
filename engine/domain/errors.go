package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy that crosses component boundaries.
// Component-local errors (query validation/generation, read-only
// violations, timeouts, execution failures) live next to the package that
// raises them: engine/querygen and engine/queryexec.
var (
	ErrEmptyQuestion     = errors.New("question must not be empty")
	ErrNotDescriptor     = errors.New("input is not an entity descriptor")
	ErrEmptyQuery        = errors.New("query must not be empty")
	ErrMissingPattern    = errors.New("referenced pattern not found in library")
	ErrMissingEmbedField = errors.New("entity has no non-empty embed fields")
)

// ValidationError wraps a sentinel with the field and value that failed.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// DataConsistencyError reports a partial dual-store outcome, rolled back
// or not.
type DataConsistencyError struct {
	EntityID      string
	Operation     string // ingest, remove, sync
	GraphSuccess  bool
	VectorSuccess bool
	RolledBack    bool
}

func (e *DataConsistencyError) Error() string {
	return fmt.Sprintf(
		"data consistency: entity=%s op=%s graph=%t vector=%t rolled_back=%t",
		e.EntityID, e.Operation, e.GraphSuccess, e.VectorSuccess, e.RolledBack,
	)
}

// CriticalConsistencyError reports a failed compensating rollback: data is
// known-divergent and must never be swallowed.
type CriticalConsistencyError struct {
	EntityID  string
	Operation string
	Cause     error
}

func (e *CriticalConsistencyError) Error() string {
	return fmt.Sprintf(
		"CRITICAL: rollback failed for entity=%s op=%s, manual reconciliation required: %v",
		e.EntityID, e.Operation, e.Cause,
	)
}

func (e *CriticalConsistencyError) Unwrap() error { return e.Cause }
