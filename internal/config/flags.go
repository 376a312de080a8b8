package config

import (
	"flag"
	"os"
	"time"

	"sentinelkey/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   database DSN (postgres:// or SQLite file path)
//	-k string   base64-encoded encryption key
//	-s string   access-token HMAC secret key
//	-t int      access token validity, minutes
//	-i int      session idle limit, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with flags defined elsewhere.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-k", "-s", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.EncryptionKey, "k", config.EncryptionKey, "base64 encryption key")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	idleLimit := fs.Int("i", int(config.SessionIdleLimit.Seconds()), "session idle limit (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*tokenValidity) * time.Minute
	config.SessionIdleLimit = time.Duration(*idleLimit) * time.Second
}
