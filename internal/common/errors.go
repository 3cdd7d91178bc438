// Package common defines shared constants and sentinel errors used across
// client and server layers of papersync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("duplicate sync id")

	// Identifier and input validation errors. Never retried.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrValidation        = errors.New("validation error")

	// Transport-level errors, retryable per retry policy.
	ErrNetwork = errors.New("network error")
	ErrTimeout = errors.New("timeout")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrAuthExpired  = errors.New("auth token expired")
	ErrInvalidToken = errors.New("invalid token")

	// Sync flow control.
	ErrVersionConflict  = errors.New("version conflict")
	ErrTombstoned       = errors.New("sync id is tombstoned")
	ErrCircuitOpen      = errors.New("circuit open")
	ErrPermanentFailure = errors.New("permanent failure")

	// Generic internal failure.
	ErrInternal = errors.New("internal error")
)
