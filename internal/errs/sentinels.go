// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"time"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCredentials covers both unknown username and wrong password,
	// so callers cannot distinguish the two (no enumeration).
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRateLimited indicates the login rate limit denied the attempt.
	ErrRateLimited = errors.New("rate limited")

	// ErrWeakSecret indicates a new password below the minimum length.
	ErrWeakSecret = errors.New("weak secret")

	// ErrUnauthenticated indicates a missing, expired, forged or stale session.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates a role mismatch for the requested operation.
	ErrForbidden = errors.New("forbidden")

	// ErrBootstrapPending indicates a bootstrap session attempting an
	// ordinary protected operation.
	ErrBootstrapPending = errors.New("bootstrap pending")

	// ErrUnavailable indicates a dependency timeout or outage. It is surfaced
	// distinctly so callers retry instead of treating it as a denial.
	ErrUnavailable = errors.New("unavailable")
)

// RateLimitError carries the time the client's window resets.
// errors.Is(e, ErrRateLimited) holds for it.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string { return "rate limited" }

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
