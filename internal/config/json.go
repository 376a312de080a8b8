package config

import (
	"encoding/json"
	"os"
	"time"

	"sentinelkey/internal/flagx"
	"sentinelkey/internal/timex"
)

// JSONConfig is the DTO used only for reading JSON configuration files.
// It uses timex.Duration for interval fields, which parses both string
// values such as "1m" and integer nanoseconds. After unmarshalling, set
// fields are copied into the runtime Config.
type JSONConfig struct {
	DatabaseDSN                 string         `json:"database_dsn"`
	EncryptionKey               string         `json:"encryption_key"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	LoginLockThreshold          int            `json:"login_lock_threshold"`
	LoginLockDuration           timex.Duration `json:"login_lock_duration"`
	TwoFactorLockThreshold      int            `json:"two_factor_lock_threshold"`
	TwoFactorLockDuration       timex.Duration `json:"two_factor_lock_duration"`
	SessionIdleLimit            timex.Duration `json:"session_idle_limit"`
	BcryptCost                  int            `json:"bcrypt_cost"`
	TOTPIssuer                  string         `json:"totp_issuer"`
}

// parseJSON loads configuration values from the JSON file named by the
// -c/-config flag, if any, into config. Only fields present in the file
// override earlier layers. An unreadable or invalid file panics; a broken
// config is a deployment error, not something to run past.
func parseJSON(config *Config) {
	jsonConfigFile := flagx.JSONConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JSONConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	applyJSON(config, c)
}

func applyJSON(config *Config, c *JSONConfig) {
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.EncryptionKey != "" {
		config.EncryptionKey = c.EncryptionKey
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	}
	if c.LoginLockThreshold != 0 {
		config.LoginLockThreshold = c.LoginLockThreshold
	}
	if c.LoginLockDuration.Duration != 0 {
		config.LoginLockDuration = time.Duration(c.LoginLockDuration.Duration)
	}
	if c.TwoFactorLockThreshold != 0 {
		config.TwoFactorLockThreshold = c.TwoFactorLockThreshold
	}
	if c.TwoFactorLockDuration.Duration != 0 {
		config.TwoFactorLockDuration = time.Duration(c.TwoFactorLockDuration.Duration)
	}
	if c.SessionIdleLimit.Duration != 0 {
		config.SessionIdleLimit = time.Duration(c.SessionIdleLimit.Duration)
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.TOTPIssuer != "" {
		config.TOTPIssuer = c.TOTPIssuer
	}
}
