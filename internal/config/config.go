// Package config handles runtime configuration: struct defaults, an
// optional JSON file overlay, environment variables, and command-line
// flags, applied in that order.
package config

import "time"

// Config holds runtime settings for the vault.
//
// Fields:
//   - DatabaseDSN: "postgres://..." selects the pgx backend, anything else
//     is treated as an SQLite file path.
//   - EncryptionKey: base64-encoded AES key for secret values. Empty
//     selects the insecure development fallback.
//   - SecretKey: HMAC secret for signing access tokens (HS256).
//   - AccessTokenValidityDuration: access token lifetime.
//   - LoginLockThreshold / LoginLockDuration: failed-password lockout.
//   - TwoFactorLockThreshold / TwoFactorLockDuration: failed-code lockout.
//   - SessionIdleLimit: idle time before a session expires.
//   - BcryptCost: password hash work factor; 0 selects the bcrypt default.
//   - TOTPIssuer: issuer label in authenticator-app enrollment URIs.
type Config struct {
	DatabaseDSN                 string
	EncryptionKey               string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	LoginLockThreshold          int
	LoginLockDuration           time.Duration
	TwoFactorLockThreshold      int
	TwoFactorLockDuration       time.Duration
	SessionIdleLimit            time.Duration
	BcryptCost                  int
	TOTPIssuer                  string
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey and the empty EncryptionKey are insecure for production
// and should be overridden.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "sentinelkey.db"
	c.EncryptionKey = ""
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.LoginLockThreshold = 3
	c.LoginLockDuration = 1 * time.Minute
	c.TwoFactorLockThreshold = 3
	c.TwoFactorLockDuration = 1 * time.Minute
	c.SessionIdleLimit = 600 * time.Second
	c.BcryptCost = 0
	c.TOTPIssuer = "SentinelKey"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment, and command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
