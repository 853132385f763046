package engine

import (
	"errors"
	"fmt"
)

// Stable error codes carried by every pipeline error.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeMissingData      = "MISSING_DATA"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// ValidationError is returned when a task fails shape or domain validation,
// before any memory access.
type ValidationError struct {
	Field string
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("validation failed: %v", e.Cause)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// MissingDataError is returned when no sessions remain to analyze after
// merging the inline batch with short-term memory.
type MissingDataError struct {
	UserID string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("no sleep sessions available to analyze for user %s", e.UserID)
}

// StoreUnavailableError is returned when the memory store could not complete
// an operation within its budget.
type StoreUnavailableError struct {
	Op    string
	Cause error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("memory store unavailable during %s: %v", e.Op, e.Cause)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Cause }

// InternalError wraps an unexpected failure inside a pure stage. Always a
// bug, never expected from valid input.
type InternalError struct {
	Stage string
	Cause error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s stage: %v", e.Stage, e.Cause)
}

func (e *InternalError) Unwrap() error { return e.Cause }

// Code maps any error to its stable pipeline code. Unknown errors map to
// INTERNAL_ERROR.
func Code(err error) string {
	var (
		validation  *ValidationError
		missing     *MissingDataError
		unavailable *StoreUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		return CodeValidation
	case errors.As(err, &missing):
		return CodeMissingData
	case errors.As(err, &unavailable):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}
