// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a record does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Helper constructor
func NewNotFound(entity string, id fmt.Stringer) error {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

var (
	// ErrConfidenceDowngrade is returned when a verify action would lower an endorsement's confidence.
	ErrConfidenceDowngrade = errors.New("confidence can only move toward confirmed")
	ErrAlreadyRetracted    = errors.New("endorsement is already retracted")
	ErrAlreadyReviewed     = errors.New("review candidate has already been reviewed")
	ErrQueueUnavailable    = errors.New("job queue is not connected")
)

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is one of the state-transition errors.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConfidenceDowngrade) ||
		errors.Is(err, ErrAlreadyRetracted) ||
		errors.Is(err, ErrAlreadyReviewed)
}
