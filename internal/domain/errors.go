package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by repositories and services
var (
	// ErrNotFound indicates the aggregate id is unknown
	ErrNotFound = errors.New("record not found")
	// ErrConcurrencyConflict indicates an optimistic version mismatch; the caller must re-read and retry
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// InvalidStateError indicates an operation attempted from a status that forbids it
type InvalidStateError struct {
	Op     string
	Status string
}

// Error implements the error interface
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s in status %s", e.Op, e.Status)
}

// NewInvalidStateError creates an InvalidStateError for the given operation and status
func NewInvalidStateError(op, status string) error {
	return &InvalidStateError{Op: op, Status: status}
}

// ValidationError indicates a rejected input value
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsInvalidState reports whether err wraps an InvalidStateError
func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}

// IsValidation reports whether err wraps a ValidationError
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
