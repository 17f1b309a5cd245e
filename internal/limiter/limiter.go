// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import "time"

// Result reports the outcome of a single counted attempt.
type Result struct {
	// Allowed is false once the caller exhausted the window; the guarded
	// operation must not run when false.
	Allowed bool
	// Remaining is the number of attempts left in the current window.
	Remaining int
	// ResetAt is when the window closes and the count starts over.
	ResetAt time.Time
}

// Limiter counts login attempts per client identifier within a fixed window.
type Limiter interface {
	// Check records one attempt and reports whether it is allowed.
	Check(identifier string) Result
	// Reset forgets the identifier, called after a verified successful login.
	Reset(identifier string)
}
