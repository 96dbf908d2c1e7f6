// Package shared contains common domain types and errors
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrNoData = errors.New("no data")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Storage / external errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "submission", "stats", "leaderboard"
	Op      string // Operation that failed, e.g., "Validate", "Save"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Submission domain errors
var (
	ErrInvalidCategory       = NewDomainError("submission", "Validate", ErrInvalidInput, "unknown submission category")
	ErrInvalidMode           = NewDomainError("submission", "Validate", ErrInvalidInput, "unknown submission mode")
	ErrQuestionCountMismatch = NewDomainError("submission", "Validate", ErrValidation, "correct + incorrect + skipped must equal total questions")
	ErrAccuracyOutOfRange    = NewDomainError("submission", "Validate", ErrValueOutOfRange, "accuracy must be between 0 and 100")
	ErrSubmittedInFuture     = NewDomainError("submission", "New", ErrValueOutOfRange, "submission time is in the future")
	ErrScoreExceedsMax       = NewDomainError("submission", "Validate", ErrValueOutOfRange, "score cannot exceed max score")
)

// User domain errors
var (
	ErrUserNotFound = NewDomainError("user", "Find", ErrNotFound, "user not found")
)

// Stats domain errors
var (
	ErrStatsNotFound = NewDomainError("stats", "Find", ErrNotFound, "user stats not found")
	ErrStatsConflict = NewDomainError("stats", "Save", ErrConcurrentModification, "user stats were modified concurrently")
)

// Activity domain errors
var (
	ErrDailyActivityNotFound = NewDomainError("activity", "Find", ErrNotFound, "daily activity not found")
	ErrDailyActivityConflict = NewDomainError("activity", "Save", ErrConcurrentModification, "daily activity was modified concurrently")
	ErrUnknownEventType      = NewDomainError("activity", "AddActivity", ErrInvalidInput, "unknown activity event type")
)

// Leaderboard domain errors
var (
	ErrLeaderboardNoData      = NewDomainError("leaderboard", "UserPosition", ErrNoData, "no qualifying submissions for user")
	ErrInvalidSortKey         = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid sort key")
	ErrInvalidTimeframe       = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid timeframe")
	ErrLeaderboardUnavailable = NewDomainError("leaderboard", "Query", ErrServiceUnavailable, "leaderboard storage unavailable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNoData checks if the error signals an empty result rather than a failure.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is an optimistic concurrency failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
