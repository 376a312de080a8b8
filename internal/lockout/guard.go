// Package lockout implements a generic per-subject failure counter with a
// timed lock. Both the password step and the 2FA step of the login protocol
// use their own Guard instance, keyed independently.
package lockout

import (
	"sync"
	"time"

	"sentinelkey/internal/timex"
)

// State is the tracked state for one subject key.
//
// Invariant: LockedUntil is non-zero only after FailureCount reached the
// guard threshold.
type State struct {
	FailureCount int
	LockedUntil  time.Time
}

// Guard counts failures per subject key and triggers a timed lock once the
// threshold is reached. Expired locks are reset lazily on the next check;
// there is no background timer.
//
// All state transitions happen under one mutex, so concurrent failures for
// the same key serialize their increment-and-check as a single atomic unit.
type Guard struct {
	mu        sync.Mutex
	threshold int
	lockFor   time.Duration
	clock     timex.Clock
	states    map[string]*State
}

// New creates a Guard that locks a key for lockFor after threshold
// consecutive failures.
func New(threshold int, lockFor time.Duration, clock timex.Clock) *Guard {
	return &Guard{
		threshold: threshold,
		lockFor:   lockFor,
		clock:     clock,
		states:    make(map[string]*State),
	}
}

// LoginKey returns the subject key for password attempts of a username.
func LoginKey(username string) string { return "login:" + username }

// TwoFactorKey returns the subject key for 2FA attempts of a username.
func TwoFactorKey(username string) string { return "2fa:" + username }

// RecordFailure increments the failure count for key and, when the count
// reaches the threshold, sets the lock. It returns a copy of the resulting
// state.
func (g *Guard) RecordFailure(key string) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.stateLocked(key)
	st.FailureCount++
	if st.FailureCount >= g.threshold && st.LockedUntil.IsZero() {
		st.LockedUntil = g.clock.Now().Add(g.lockFor)
	}
	return *st
}

// RecordSuccess resets the state for key.
func (g *Guard) RecordSuccess(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.states, key)
}

// Status reports whether key is currently locked and, if so, for how much
// longer. Observing an expired lock resets the state as a side effect.
func (g *Guard) Status(key string) (locked bool, remaining time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.states[key]
	if !ok || st.LockedUntil.IsZero() {
		return false, 0
	}

	remaining = st.LockedUntil.Sub(g.clock.Now())
	if remaining <= 0 {
		delete(g.states, key)
		return false, 0
	}
	return true, remaining
}

// FailureCount returns the current failure count for key, resetting the
// state first if its lock has expired.
func (g *Guard) FailureCount(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.states[key]
	if !ok {
		return 0
	}
	if !st.LockedUntil.IsZero() && !st.LockedUntil.After(g.clock.Now()) {
		delete(g.states, key)
		return 0
	}
	return st.FailureCount
}

func (g *Guard) stateLocked(key string) *State {
	st, ok := g.states[key]
	if ok {
		// lazy expiry: a stale lock resets before the new failure counts
		if !st.LockedUntil.IsZero() && !st.LockedUntil.After(g.clock.Now()) {
			st.FailureCount = 0
			st.LockedUntil = time.Time{}
		}
		return st
	}
	st = &State{}
	g.states[key] = st
	return st
}
