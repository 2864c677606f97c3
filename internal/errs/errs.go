// Package errs defines the error kinds shared across the Sellforge server.
//
// Handlers match on these sentinels with errors.Is to pick an HTTP status;
// everything else is treated as an internal error.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrAuthorization marks a request for a resource the caller does not own.
	ErrAuthorization = errors.New("not authorized")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExpired marks a rental window that has elapsed. Distinct from
	// ErrNotFound so callers can render "expired" vs "missing".
	ErrExpired = errors.New("expired")
	// ErrConflict marks a uniqueness violation, typically a duplicate
	// payment reference. The fulfillment pipeline resolves it to success.
	ErrConflict = errors.New("conflict")
	// ErrDependency marks a failed or timed-out external provider call.
	// Retryable by the caller of the specific operation.
	ErrDependency = errors.New("dependency failure")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// Authorizationf wraps ErrAuthorization with a formatted message.
func Authorizationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrAuthorization)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Expiredf wraps ErrExpired with a formatted message.
func Expiredf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrExpired)...)
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// Dependencyf wraps ErrDependency with a formatted message.
func Dependencyf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrDependency)...)
}
