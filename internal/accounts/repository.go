package accounts

import (
	"context"
	"time"
)

// Repository is the account half of the credential store.
type Repository interface {
	// Create inserts a new account. A taken username yields
	// common.ErrDuplicateUsername.
	Create(ctx context.Context, account *Account) (*Account, error)

	// GetByUsername returns common.ErrNotFound for unknown usernames.
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// SetLastLogin records the time of a successful full login.
	SetLastLogin(ctx context.Context, username string, at time.Time) error

	// SetTOTPSecret replaces the stored shared secret.
	SetTOTPSecret(ctx context.Context, username, secret string) error

	// SetTOTPEnabled flips the 2FA flag.
	SetTOTPEnabled(ctx context.Context, username string, enabled bool) error
}
