package limiter

import (
	"sync"
	"sync/atomic"
	"time"
)

// Defaults matching the login endpoint policy.
const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxAttempts = 5

	// highWater triggers an opportunistic sweep of long-expired entries.
	highWater = 1000
	// staleAfter is how long past its reset an entry may linger before a sweep
	// removes it.
	staleAfter = time.Hour
)

type entry struct {
	count   int
	resetAt time.Time
}

// Memory is a fixed-window in-process limiter. It is safe for concurrent use.
// Process-local by design: with multiple instances each keeps its own counts.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry

	window      time.Duration
	maxAttempts int

	sweeping atomic.Bool
	now      func() time.Time
}

// NewMemory constructs an in-memory limiter with the given window and threshold.
func NewMemory(window time.Duration, maxAttempts int) *Memory {
	return &Memory{
		entries:     make(map[string]*entry),
		window:      window,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Check records one attempt for identifier and reports whether it is allowed.
func (m *Memory) Check(identifier string) Result {
	now := m.now()

	m.mu.Lock()
	e, ok := m.entries[identifier]
	if !ok || !now.Before(e.resetAt) {
		// First attempt in a window, or the window passed: replace the entry.
		e = &entry{count: 1, resetAt: now.Add(m.window)}
		m.entries[identifier] = e
		res := Result{Allowed: true, Remaining: m.maxAttempts - 1, ResetAt: e.resetAt}
		ln := len(m.entries)
		m.mu.Unlock()
		m.maybeSweep(ln, now)
		return res
	}
	if e.count < m.maxAttempts {
		e.count++
		res := Result{Allowed: true, Remaining: m.maxAttempts - e.count, ResetAt: e.resetAt}
		m.mu.Unlock()
		return res
	}
	res := Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
	m.mu.Unlock()
	return res
}

// Reset deletes the identifier's entry outright.
func (m *Memory) Reset(identifier string) {
	m.mu.Lock()
	delete(m.entries, identifier)
	m.mu.Unlock()
}

// maybeSweep starts a background sweep once the tracked set passes highWater.
func (m *Memory) maybeSweep(tracked int, now time.Time) {
	if tracked <= highWater || !m.sweeping.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer m.sweeping.Store(false)
		m.sweep(now)
	}()
}

// sweep removes entries whose window closed more than staleAfter ago. It
// snapshots reset times under the lock so the check path is never held up for
// the whole map scan.
func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	resets := make(map[string]time.Time, len(m.entries))
	for k, e := range m.entries {
		resets[k] = e.resetAt
	}
	m.mu.Unlock()

	cutoff := now.Add(-staleAfter)
	var stale []string
	for k, resetAt := range resets {
		if resetAt.Before(cutoff) {
			stale = append(stale, k)
		}
	}
	if len(stale) == 0 {
		return
	}

	m.mu.Lock()
	for _, k := range stale {
		if e, ok := m.entries[k]; ok && e.resetAt.Before(cutoff) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}
