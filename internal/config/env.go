package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig is the DTO for environment variables. Unset variables leave the
// corresponding Config fields as the earlier layers set them.
type envConfig struct {
	DatabaseDSN                 string        `env:"VAULT_DATABASE_DSN"`
	EncryptionKey               string        `env:"VAULT_ENCRYPTION_KEY"`
	SecretKey                   string        `env:"VAULT_SECRET_KEY"`
	AccessTokenValidityDuration time.Duration `env:"VAULT_ACCESS_TOKEN_VALIDITY"`
	LoginLockThreshold          int           `env:"VAULT_LOGIN_LOCK_THRESHOLD"`
	LoginLockDuration           time.Duration `env:"VAULT_LOGIN_LOCK_DURATION"`
	TwoFactorLockThreshold      int           `env:"VAULT_2FA_LOCK_THRESHOLD"`
	TwoFactorLockDuration       time.Duration `env:"VAULT_2FA_LOCK_DURATION"`
	SessionIdleLimit            time.Duration `env:"VAULT_SESSION_IDLE_LIMIT"`
	BcryptCost                  int           `env:"VAULT_BCRYPT_COST"`
	TOTPIssuer                  string        `env:"VAULT_TOTP_ISSUER"`
}

// parseEnv overlays VAULT_* environment variables onto config.
func parseEnv(config *Config) {
	c := envConfig{}
	if err := env.Parse(&c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.EncryptionKey != "" {
		config.EncryptionKey = c.EncryptionKey
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidityDuration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration
	}
	if c.LoginLockThreshold != 0 {
		config.LoginLockThreshold = c.LoginLockThreshold
	}
	if c.LoginLockDuration != 0 {
		config.LoginLockDuration = c.LoginLockDuration
	}
	if c.TwoFactorLockThreshold != 0 {
		config.TwoFactorLockThreshold = c.TwoFactorLockThreshold
	}
	if c.TwoFactorLockDuration != 0 {
		config.TwoFactorLockDuration = c.TwoFactorLockDuration
	}
	if c.SessionIdleLimit != 0 {
		config.SessionIdleLimit = c.SessionIdleLimit
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.TOTPIssuer != "" {
		config.TOTPIssuer = c.TOTPIssuer
	}
}
