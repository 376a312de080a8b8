// Package accounts implements master-account management: registration with
// salted password hashing, enumeration-safe credential verification, and the
// two-factor enrollment flow.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"sentinelkey/internal/common"
	"sentinelkey/internal/timex"
	"sentinelkey/internal/totp"
)

const (
	// MinPasswordLength is the only password policy enforced here.
	MinPasswordLength = 6

	// AdminUsername is the bootstrap administrator account name.
	AdminUsername = "admin"
)

// dummyHash is a throwaway bcrypt hash compared against on lookup miss, so
// an unknown username costs the same as a wrong password.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Service provides account operations on top of a Repository.
type Service struct {
	repo       Repository
	bcryptCost int
	totpIssuer string
	clock      timex.Clock
}

// NewService constructs an account service. A non-positive cost selects the
// bcrypt default work factor.
func NewService(repo Repository, bcryptCost int, totpIssuer string, clock timex.Clock) *Service {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, bcryptCost: bcryptCost, totpIssuer: totpIssuer, clock: clock}
}

// Register creates a new account with a salted hash of password.
// 2FA starts disabled and the account is not an admin.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", common.ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrInvalidInput, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}

	_, err = s.repo.Create(ctx, &Account{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	})
	return err
}

// Verify checks username/password against the stored hash. Unknown users
// and wrong passwords both come back as a plain false, with a dummy hash
// compare on lookup miss so the two cases are not timing-distinguishable.
// Repository failures are returned as errors, not as a false, so a store
// outage is never mistaken for bad credentials.
func (s *Service) Verify(ctx context.Context, username, password string) (bool, error) {
	account, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, common.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)) == nil, nil
}

// Get returns the account for username.
func (s *Service) Get(ctx context.Context, username string) (*Account, error) {
	return s.repo.GetByUsername(ctx, username)
}

// RecordLogin stamps LastLoginAt for a completed full login.
func (s *Service) RecordLogin(ctx context.Context, username string) error {
	return s.repo.SetLastLogin(ctx, username, s.clock.Now())
}

// Enrollment holds everything an authenticator app needs to enroll.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
}

// InitTwoFactor generates and stores a fresh shared secret for username and
// returns the enrollment material. The account's 2FA flag stays off until
// ConfirmTwoFactor succeeds, so a user cannot lock themselves out with a
// secret they never confirmed.
func (s *Service) InitTwoFactor(ctx context.Context, username string) (*Enrollment, error) {
	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	secret := totp.GenerateSecret()
	if err := s.repo.SetTOTPSecret(ctx, account.Username, secret); err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret:          secret,
		ProvisioningURI: totp.ProvisioningURI(account.Username, secret, s.totpIssuer),
	}, nil
}

// ConfirmTwoFactor verifies one live code against the stored secret and,
// on success, enables 2FA for the account.
func (s *Service) ConfirmTwoFactor(ctx context.Context, username, code string) error {
	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if account.TOTPSecret == "" {
		return common.ErrTwoFactorNotConfigured
	}

	if !totp.VerifyAt(account.TOTPSecret, code, 1, s.clock.Now()) {
		return common.ErrInvalidCode
	}

	return s.repo.SetTOTPEnabled(ctx, username, true)
}

// DisableTwoFactor turns the second factor off. The stored secret is
// retained; re-enabling requires a fresh confirmation.
func (s *Service) DisableTwoFactor(ctx context.Context, username string) error {
	return s.repo.SetTOTPEnabled(ctx, username, false)
}

// VerifyTwoFactor checks a login-time code for username.
func (s *Service) VerifyTwoFactor(ctx context.Context, username, code string) (bool, error) {
	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if !account.TOTPEnabled || account.TOTPSecret == "" {
		return false, common.ErrTwoFactorNotConfigured
	}
	return totp.VerifyAt(account.TOTPSecret, code, 1, s.clock.Now()), nil
}

// EnsureAdmin creates the administrator account with the given password if
// it does not exist yet. Returns true when the account was created.
func (s *Service) EnsureAdmin(ctx context.Context, password string) (bool, error) {
	_, err := s.repo.GetByUsername(ctx, AdminUsername)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return false, err
	}

	if len(password) < MinPasswordLength {
		return false, fmt.Errorf("%w: password must be at least %d characters", common.ErrInvalidInput, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return false, err
	}

	_, err = s.repo.Create(ctx, &Account{
		Username:     AdminUsername,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
		IsAdmin:      true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
