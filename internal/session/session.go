// Package session tracks the authenticated state of one user context:
// idle-timeout handling, the login step sequence, and the transient
// credential holding used between the password and 2FA steps.
package session

import (
	"sync"
	"time"

	"sentinelkey/internal/timex"
)

// Step identifies where a login attempt currently stands.
type Step int

const (
	StepNone Step = iota
	StepAwaitingTwoFactor
)

// DefaultIdleLimit is the idle timeout applied when none is configured.
const DefaultIdleLimit = 600 * time.Second

// Manager holds session state for a single user context. The embedding
// front-end is expected to run one action to completion before the next,
// but the manager is still safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	clock     timex.Clock
	idleLimit time.Duration

	authenticated bool
	currentUser   string
	lastActivity  time.Time
	step          Step

	pendingUsername string
	pendingPassword string
}

// NewManager creates a session manager with the given idle limit.
// A non-positive limit falls back to DefaultIdleLimit.
func NewManager(idleLimit time.Duration, clock timex.Clock) *Manager {
	if idleLimit <= 0 {
		idleLimit = DefaultIdleLimit
	}
	return &Manager{clock: clock, idleLimit: idleLimit}
}

// Establish marks the session authenticated as username and starts the
// activity clock. Any pending credentials are discarded.
func (m *Manager) Establish(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.authenticated = true
	m.currentUser = username
	m.lastActivity = m.clock.Now()
	m.step = StepNone
	m.clearPendingLocked()
}

// Touch updates the last-activity timestamp. Call on every authenticated
// request.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = m.clock.Now()
}

// CheckTimeout reports whether the session expired from inactivity. An
// expired session is forcibly cleared; an active one has its activity
// timestamp refreshed.
func (m *Manager) CheckTimeout() (expired bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authenticated {
		return false
	}

	now := m.clock.Now()
	if now.Sub(m.lastActivity) > m.idleLimit {
		m.resetLocked()
		return true
	}
	m.lastActivity = now
	return false
}

// Logout clears the authenticated state and all transient secret material.
// Decrypted values must not be reachable through the session afterwards.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// CurrentUser returns the authenticated username, if any.
func (m *Manager) CurrentUser() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticated {
		return "", false
	}
	return m.currentUser, true
}

// Authenticated reports whether a user is logged in.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// Step returns the current login step.
func (m *Manager) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// HoldPending stores the verified credentials while the 2FA step is
// outstanding and moves the session to StepAwaitingTwoFactor.
func (m *Manager) HoldPending(username, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingUsername = username
	m.pendingPassword = password
	m.step = StepAwaitingTwoFactor
}

// Pending returns the held credentials, if the session is awaiting 2FA.
func (m *Manager) Pending() (username, password string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepAwaitingTwoFactor {
		return "", "", false
	}
	return m.pendingUsername, m.pendingPassword, true
}

// ClearPending drops held credentials and returns the session to StepNone.
// Called on 2FA lockout so credentials cannot be replayed after unlock.
func (m *Manager) ClearPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearPendingLocked()
	m.step = StepNone
}

func (m *Manager) resetLocked() {
	m.authenticated = false
	m.currentUser = ""
	m.step = StepNone
	m.clearPendingLocked()
}

func (m *Manager) clearPendingLocked() {
	m.pendingUsername = ""
	m.pendingPassword = ""
}
