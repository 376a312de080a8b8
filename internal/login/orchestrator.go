// Package login implements the end-to-end login protocol: password
// verification with lockout, the optional 2FA gate with its own independent
// lockout, and session establishment with an access token.
package login

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sentinelkey/internal/accounts"
	"sentinelkey/internal/auth"
	"sentinelkey/internal/common"
	"sentinelkey/internal/lockout"
	"sentinelkey/internal/logging"
	"sentinelkey/internal/session"
	"sentinelkey/internal/timex"
	"sentinelkey/internal/totp"
)

// Status tells the caller where the login attempt stands after a step.
type Status int

const (
	// StatusAuthenticated means the login completed and a session exists.
	StatusAuthenticated Status = iota
	// StatusAwaitingTwoFactor means the password was accepted and a
	// verification code must follow.
	StatusAwaitingTwoFactor
)

// Result is the successful outcome of a login step. AccessToken is set only
// when Status is StatusAuthenticated.
type Result struct {
	Status      Status
	AccessToken string
}

// Orchestrator drives the login state machine. Password attempts and 2FA
// attempts are rate-limited by separate guards so a locked second factor
// does not reveal anything about the password step.
type Orchestrator struct {
	accounts      *accounts.Service
	loginGuard    *lockout.Guard
	twoFAGuard    *lockout.Guard
	session       *session.Manager
	clock         timex.Clock
	log           logging.Logger
	secretKey     []byte
	tokenValidity time.Duration
}

// NewOrchestrator wires the login protocol together.
func NewOrchestrator(
	accountSvc *accounts.Service,
	loginGuard, twoFAGuard *lockout.Guard,
	sess *session.Manager,
	clock timex.Clock,
	log logging.Logger,
	secretKey []byte,
	tokenValidity time.Duration,
) *Orchestrator {
	return &Orchestrator{
		accounts:      accountSvc,
		loginGuard:    loginGuard,
		twoFAGuard:    twoFAGuard,
		session:       sess,
		clock:         clock,
		log:           log,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
	}
}

// SubmitPassword runs the password step. Outcomes:
//   - the account is locked: *common.LockedError
//   - wrong credentials (or unknown user): common.ErrInvalidCredentials,
//     counted toward the login lockout
//   - correct credentials with 2FA enabled: StatusAwaitingTwoFactor, with
//     the credentials held for the re-check after the code step
//   - correct credentials without 2FA: StatusAuthenticated
func (o *Orchestrator) SubmitPassword(ctx context.Context, username, password string) (*Result, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrInvalidInput)
	}

	key := lockout.LoginKey(username)
	if locked, remaining := o.loginGuard.Status(key); locked {
		return nil, &common.LockedError{Remaining: remaining}
	}

	ok, err := o.accounts.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		st := o.loginGuard.RecordFailure(key)
		if !st.LockedUntil.IsZero() {
			o.log.Warn(ctx, "login locked after repeated failures", "username", username)
			return nil, &common.LockedError{Remaining: st.LockedUntil.Sub(o.clock.Now())}
		}
		return nil, common.ErrInvalidCredentials
	}

	o.loginGuard.RecordSuccess(key)

	account, err := o.accounts.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	if account.TOTPEnabled {
		o.session.HoldPending(username, password)
		return &Result{Status: StatusAwaitingTwoFactor}, nil
	}

	return o.finalize(ctx, username)
}

// SubmitTwoFactor runs the code step for the login currently awaiting its
// second factor. A malformed code is rejected up front and does not consume
// a lockout attempt. Reaching the 2FA lockout threshold clears the held
// credentials, so they cannot be replayed once the lock expires.
func (o *Orchestrator) SubmitTwoFactor(ctx context.Context, code string) (*Result, error) {
	username, password, ok := o.session.Pending()
	if !ok {
		return nil, fmt.Errorf("%w: no login awaiting a verification code", common.ErrInvalidInput)
	}

	key := lockout.TwoFactorKey(username)
	if locked, remaining := o.twoFAGuard.Status(key); locked {
		return nil, &common.LockedError{Remaining: remaining}
	}

	if !totp.ValidFormat(code) {
		return nil, fmt.Errorf("%w: code must be %d digits", common.ErrInvalidInput, totp.CodeLength)
	}

	valid, err := o.accounts.VerifyTwoFactor(ctx, username, code)
	if err != nil {
		return nil, err
	}
	if !valid {
		st := o.twoFAGuard.RecordFailure(key)
		if !st.LockedUntil.IsZero() {
			o.session.ClearPending()
			o.log.Warn(ctx, "2fa locked after repeated failures", "username", username)
			return nil, &common.LockedError{Remaining: st.LockedUntil.Sub(o.clock.Now())}
		}
		return nil, common.ErrInvalidCode
	}

	o.twoFAGuard.RecordSuccess(key)

	// the account may have changed while the code step was outstanding;
	// re-check the original credentials before finalizing
	ok, err = o.accounts.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		o.session.ClearPending()
		return nil, common.ErrStaleSession
	}

	return o.finalize(ctx, username)
}

// Logout ends the current session.
func (o *Orchestrator) Logout() {
	o.session.Logout()
}

func (o *Orchestrator) finalize(ctx context.Context, username string) (*Result, error) {
	o.loginGuard.RecordSuccess(lockout.LoginKey(username))

	if err := o.accounts.RecordLogin(ctx, username); err != nil {
		return nil, err
	}

	// Establish also drops any held credentials
	o.session.Establish(username)

	token, err := auth.GenerateToken(username, o.secretKey, o.tokenValidity, o.clock.Now())
	if err != nil {
		return nil, err
	}

	o.log.Info(ctx, "login completed", "username", username)
	return &Result{Status: StatusAuthenticated, AccessToken: token}, nil
}
