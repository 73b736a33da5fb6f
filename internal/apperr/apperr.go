// Package apperr defines the error taxonomy for the session-timer core.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so that callers can react to the category
// without matching on message text.
type Kind int

const (
	// KindValidation covers rejected inputs: non-positive durations,
	// oversized labels. Validation errors are never persisted.
	KindValidation Kind = iota
	// KindNotFound covers unknown ids and cross-owner lookups.
	KindNotFound
	// KindInvalidTransition covers lifecycle calls that the session
	// state machine forbids.
	KindInvalidTransition
	// KindPersistence covers store failures surfaced to the caller.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindInvalidTransition:
		return "invalid transition"
	case KindPersistence:
		return "persistence"
	}

	return "unknown"
}

// Error is the concrete error type used throughout the timer core.
type Error struct {
	Err     error
	Message string
	Kind    Kind
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf creates a validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf creates a not-found error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionf creates an invalid-transition error. The message must
// name the attempted and current status.
func InvalidTransitionf(format string, args ...any) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf(format, args...),
	}
}

// Persistence wraps a store failure.
func Persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

func isKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}

	return false
}

func IsValidation(err error) bool        { return isKind(err, KindValidation) }
func IsNotFound(err error) bool          { return isKind(err, KindNotFound) }
func IsInvalidTransition(err error) bool { return isKind(err, KindInvalidTransition) }
func IsPersistence(err error) bool       { return isKind(err, KindPersistence) }
