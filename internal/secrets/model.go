// Package secrets manages per-account service credentials: encrypted
// storage, retrieval with on-demand decryption, and the one-time migration
// of legacy plaintext records.
package secrets

import (
	"regexp"
	"time"
)

// SecretRecord is one stored service credential, keyed by
// (Username, Service). EncryptedValue is opaque ciphertext; only Reveal
// decrypts it.
type SecretRecord struct {
	ID              string
	Username        string
	Service         string
	ServiceUsername string
	EncryptedValue  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// serviceNamePattern restricts service names to letters, digits, spaces,
// hyphens and underscores.
var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\- ]+$`)

// ValidServiceName reports whether name is acceptable as a service key.
// The caller is expected to trim whitespace first.
func ValidServiceName(name string) bool {
	return name != "" && serviceNamePattern.MatchString(name)
}
