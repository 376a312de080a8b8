package accounts

import "time"

// Account is a master login record.
//
// Invariant: TOTPSecret is non-empty whenever TOTPEnabled is true.
// TOTPSecret and TOTPEnabled are mutated only by the 2FA-management flow;
// LastLoginAt only by a successful full login.
type Account struct {
	ID           string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
	LastLoginAt  *time.Time
	TOTPSecret   string
	TOTPEnabled  bool
	IsAdmin      bool
}
