// Package app initializes and runs the vault: it loads configuration,
// opens the credential store, wires the authentication engine together,
// and hands control to the interactive front-end.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sentinelkey/internal/accounts"
	"sentinelkey/internal/cli"
	"sentinelkey/internal/config"
	"sentinelkey/internal/cryptox"
	"sentinelkey/internal/lockout"
	"sentinelkey/internal/logging"
	"sentinelkey/internal/login"
	"sentinelkey/internal/secrets"
	"sentinelkey/internal/session"
	"sentinelkey/internal/store"
	"sentinelkey/internal/timex"
)

// App owns the wired components and the store handle.
type App struct {
	config *config.Config
	logger logging.Logger
	store  *store.Store
	cli    *cli.App
}

// NewApp builds the full component graph from configuration.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cipher, err := cryptox.Load(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key error: %w", err)
	}
	if cipher.Insecure() {
		logger.Warn(ctx, "NO ENCRYPTION KEY CONFIGURED, RUNNING ON THE BUILT-IN DEVELOPMENT KEY, STORED SECRETS ARE NOT PROTECTED",
			"hint", "set VAULT_ENCRYPTION_KEY to a base64-encoded AES key")
	}

	st, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	clock := timex.Real()

	accountSvc := accounts.NewService(st.Accounts(), cfg.BcryptCost, cfg.TOTPIssuer, clock)
	secretSvc := secrets.NewService(st.Secrets(), cipher, clock)
	migrator := secrets.NewMigrator(st.Conn(), cipher, clock)

	loginGuard := lockout.New(cfg.LoginLockThreshold, cfg.LoginLockDuration, clock)
	twoFAGuard := lockout.New(cfg.TwoFactorLockThreshold, cfg.TwoFactorLockDuration, clock)
	sess := session.NewManager(cfg.SessionIdleLimit, clock)

	orch := login.NewOrchestrator(accountSvc, loginGuard, twoFAGuard, sess, clock,
		logger, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)

	cliApp := cli.NewApp(orch, accountSvc, secretSvc, migrator, sess, logger)

	return &App{config: cfg, logger: logger, store: st, cli: cliApp}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the interactive front-end and blocks until it exits or a
// termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	app.logger.Info(ctx, "vault opened", "dsn", app.config.DatabaseDSN)

	app.cli.Run(ctx)

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "store close error", "error", err)
	}
}
