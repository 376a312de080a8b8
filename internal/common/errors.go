// Package common defines shared constants and sentinel errors used across
// SentinelKey components. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation errors (recoverable, re-prompt).
	ErrInvalidInput = errors.New("invalid input")

	// Conflict errors.
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateService  = errors.New("service already exists")

	// Authentication failures (counted toward lockout).
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidCode        = errors.New("invalid verification code")

	// ErrLocked marks temporary lockout errors; match with errors.Is.
	// The concrete value carried back to callers is *LockedError.
	ErrLocked = errors.New("temporarily locked")

	// Data-integrity failure on stored ciphertext. Never treated as an
	// empty secret.
	ErrDecrypt = errors.New("decryption failed")

	// Store I/O failure; retry the whole operation.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStaleSession aborts the current login attempt and forces a
	// restart from the anonymous state.
	ErrStaleSession = errors.New("stale login session")

	// Two-factor management errors.
	ErrTwoFactorNotConfigured = errors.New("two-factor authentication not configured")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
)

// LockedError reports that a subject is locked out and for how long.
// It matches ErrLocked under errors.Is.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("temporarily locked, retry in %s", e.Remaining.Round(time.Second))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}
