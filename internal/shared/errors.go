package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrPrecondition marks a document or chart of accounts in the wrong state for the operation.
	ErrPrecondition = errors.New("precondition failed")
	// ErrDuplicatePosting marks an idempotency key that was already used.
	ErrDuplicatePosting = errors.New("already posted")
)

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// NewValidationError constructs a ValidationError.
func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Unwrap ties the error to ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// PreconditionError is an actionable refusal, e.g. "assign an account to line 2".
type PreconditionError struct {
	Message string
}

// Preconditionf formats a PreconditionError.
func Preconditionf(format string, args ...any) error {
	return &PreconditionError{Message: fmt.Sprintf(format, args...)}
}

func (e *PreconditionError) Error() string { return e.Message }

// Unwrap ties the error to ErrPrecondition.
func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// DuplicateError reports an earlier posting of the same source document.
type DuplicateError struct {
	Message             string
	LedgerTransactionID string
}

func (e *DuplicateError) Error() string {
	if e.Message == "" {
		return ErrDuplicatePosting.Error()
	}
	return e.Message
}

// Unwrap ties the error to ErrDuplicatePosting.
func (e *DuplicateError) Unwrap() error { return ErrDuplicatePosting }
