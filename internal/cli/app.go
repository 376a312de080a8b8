package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"sentinelkey/internal/accounts"
	"sentinelkey/internal/common"
	"sentinelkey/internal/logging"
	"sentinelkey/internal/login"
	"sentinelkey/internal/secrets"
	"sentinelkey/internal/session"
	"sentinelkey/internal/totp"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// writeFile is a test seam for os.WriteFile, used when saving the 2FA QR code.
var writeFile = os.WriteFile

const qrCodeFile = "totp-qr.png"

// App holds the command handlers the REPL dispatches to.
type App struct {
	orch       *login.Orchestrator
	accountSvc *accounts.Service
	secretSvc  *secrets.Service
	migrator   *secrets.Migrator
	session    *session.Manager
	log        logging.Logger

	reader *bufio.Reader
	out    io.Writer
}

// NewApp wires the command surface together. The migrator may be nil when
// the embedding binary does not expose the migration command.
func NewApp(
	orch *login.Orchestrator,
	accountSvc *accounts.Service,
	secretSvc *secrets.Service,
	migrator *secrets.Migrator,
	sess *session.Manager,
	log logging.Logger,
) *App {
	return &App{
		orch:       orch,
		accountSvc: accountSvc,
		secretSvc:  secretSvc,
		migrator:   migrator,
		session:    sess,
		log:        log,
		reader:     bufio.NewReader(os.Stdin),
		out:        os.Stdout,
	}
}

// Run starts the REPL on stdin.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to SentinelKey (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

func (a *App) status() string {
	if user, ok := a.session.CurrentUser(); ok {
		return "(" + user + ")"
	}
	return ""
}

func (a *App) isLoggedIn() bool {
	return a.session.Authenticated()
}

// currentUser checks the idle timeout before every authenticated command.
func (a *App) currentUser() (string, bool) {
	if a.session.CheckTimeout() {
		fmt.Fprintln(a.out, "Session expired, please log in again.")
		return "", false
	}
	user, ok := a.session.CurrentUser()
	if !ok {
		fmt.Fprintln(a.out, "Please log in first.")
		return "", false
	}
	return user, true
}

// Register creates a new master account.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.accountSvc.Register(ctx, username, string(password)); err != nil {
		a.printError(err)
		return err
	}

	fmt.Fprintln(a.out, "Account created. You can now log in.")
	return nil
}

// Login runs the password step and, when the account has 2FA enabled, the
// code step.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter master password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	result, err := a.orch.SubmitPassword(ctx, username, string(password))
	if err != nil {
		a.printError(err)
		return err
	}

	if result.Status == login.StatusAwaitingTwoFactor {
		code, err := getSimpleText(a.reader, "Enter verification code", a.out)
		if err != nil {
			return err
		}
		result, err = a.orch.SubmitTwoFactor(ctx, code)
		if err != nil {
			a.printError(err)
			return err
		}
	}

	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

// Add stores a new credential for the logged-in account.
func (a *App) Add(ctx context.Context) error {
	user, ok := a.currentUser()
	if !ok {
		return nil
	}

	service, err := getSimpleText(a.reader, "Service name", a.out)
	if err != nil {
		return err
	}
	serviceUser, err := getSimpleText(a.reader, "Service username", a.out)
	if err != nil {
		return err
	}
	value, err := getPassword("Service password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(value)

	if err := a.secretSvc.Save(ctx, user, service, serviceUser, string(value)); err != nil {
		a.printError(err)
		return err
	}

	fmt.Fprintln(a.out, "Saved.")
	return nil
}

// Show reveals one credential.
func (a *App) Show(ctx context.Context) error {
	user, ok := a.currentUser()
	if !ok {
		return nil
	}

	service, err := getSimpleText(a.reader, "Service name", a.out)
	if err != nil {
		return err
	}

	secret, err := a.secretSvc.Reveal(ctx, user, service)
	if err != nil {
		a.printError(err)
		return err
	}

	fmt.Fprintf(a.out, "Service:  %s\n", secret.Service)
	fmt.Fprintf(a.out, "Username: %s\n", secret.ServiceUsername)
	fmt.Fprintf(a.out, "Password: %s\n", secret.Value)
	return nil
}

// List prints the stored services without decrypting anything.
func (a *App) List(ctx context.Context) error {
	user, ok := a.currentUser()
	if !ok {
		return nil
	}

	records, err := a.secretSvc.List(ctx, user)
	if err != nil {
		a.printError(err)
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(a.out, "No stored credentials.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(a.out, "%s\t%s\t(updated %s)\n",
			r.Service, r.ServiceUsername, r.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// Update replaces the stored password of an existing credential.
func (a *App) Update(ctx context.Context) error {
	user, ok := a.currentUser()
	if !ok {
		return nil
	}

	service, err := getSimpleText(a.reader, "Service name", a.out)
	if err != nil {
		return err
	}
	value, err := getPassword("New service password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(value)

	if err := a.secretSvc.Update(ctx, user, service, string(value)); err != nil {
		a.printError(err)
		return err
	}

	fmt.Fprintln(a.out, "Updated.")
	return nil
}

// Delete removes one credential.
func (a *App) Delete(ctx context.Context) error {
	user, ok := a.currentUser()
	if !ok {
		return nil
	}

	service, err := getSimpleText(a.reader, "Service name", a.out)
	if err != nil {
		return err
	}

	if err := a.secretSvc.Delete(ctx, user, service); err != nil {
		a.printError(err)
		return err
	}

	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

// EnableTwoFactor enrolls a fresh shared secret and confirms it with one
// live code before the flag flips on.
func (a *App) EnableTwoFactor(ctx context.Context) error {
	user, ok := a.currentUser()
	if !ok {
		return nil
	}

	enrollment, err := a.accountSvc.InitTwoFactor(ctx, user)
	if err != nil {
		a.printError(err)
		return err
	}

	fmt.Fprintf(a.out, "Secret: %s\n", enrollment.Secret)
	fmt.Fprintf(a.out, "URI:    %s\n", enrollment.ProvisioningURI)

	if qr, err := totp.QRCodePNG(enrollment.ProvisioningURI, 256); err == nil {
		if err := writeFile(qrCodeFile, qr, 0o600); err == nil {
			fmt.Fprintf(a.out, "QR code saved to %s\n", qrCodeFile)
		}
	}

	code, err := getSimpleText(a.reader, "Enter a code from your authenticator app", a.out)
	if err != nil {
		return err
	}

	if err := a.accountSvc.ConfirmTwoFactor(ctx, user, code); err != nil {
		a.printError(err)
		return err
	}

	fmt.Fprintln(a.out, "Two-factor authentication enabled.")
	return nil
}

// DisableTwoFactor turns the second factor off.
func (a *App) DisableTwoFactor(ctx context.Context) error {
	user, ok := a.currentUser()
	if !ok {
		return nil
	}

	if err := a.accountSvc.DisableTwoFactor(ctx, user); err != nil {
		a.printError(err)
		return err
	}

	fmt.Fprintln(a.out, "Two-factor authentication disabled.")
	return nil
}

// Migrate runs the one-time plaintext re-encryption batch. Admin only.
func (a *App) Migrate(ctx context.Context) error {
	user, ok := a.currentUser()
	if !ok {
		return nil
	}

	account, err := a.accountSvc.Get(ctx, user)
	if err != nil {
		a.printError(err)
		return err
	}
	if !account.IsAdmin {
		fmt.Fprintln(a.out, "Only the administrator can run the migration.")
		return nil
	}
	if a.migrator == nil {
		fmt.Fprintln(a.out, "Migration is not available.")
		return nil
	}

	updated, err := a.migrator.EncryptPlaintextRecords(ctx)
	if err != nil {
		a.printError(err)
		return err
	}

	fmt.Fprintf(a.out, "Migration complete, %d record(s) re-encrypted.\n", updated)
	return nil
}

// InitAdmin creates the administrator account if it does not exist yet.
func (a *App) InitAdmin(ctx context.Context) error {
	password, err := getPassword("Enter administrator password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	created, err := a.accountSvc.EnsureAdmin(ctx, string(password))
	if err != nil {
		a.printError(err)
		return err
	}

	if created {
		fmt.Fprintln(a.out, "Administrator account created.")
	} else {
		fmt.Fprintln(a.out, "Administrator account already exists.")
	}
	return nil
}

// Logout ends the session.
func (a *App) Logout(ctx context.Context) error {
	a.orch.Logout()
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// printError translates engine errors into user-facing messages without
// leaking which factor failed.
func (a *App) printError(err error) {
	var locked *common.LockedError
	switch {
	case errors.As(err, &locked):
		fmt.Fprintf(a.out, "Too many attempts. %s.\n", locked.Error())
	case errors.Is(err, common.ErrInvalidCredentials):
		fmt.Fprintln(a.out, "Invalid username or password.")
	case errors.Is(err, common.ErrInvalidCode):
		fmt.Fprintln(a.out, "Invalid verification code.")
	case errors.Is(err, common.ErrStaleSession):
		fmt.Fprintln(a.out, "Login session is no longer valid, start over.")
	case errors.Is(err, common.ErrDuplicateUsername):
		fmt.Fprintln(a.out, "That username is already taken.")
	case errors.Is(err, common.ErrDuplicateService):
		fmt.Fprintln(a.out, "A credential for that service already exists, use update.")
	case errors.Is(err, common.ErrNotFound):
		fmt.Fprintln(a.out, "Not found.")
	case errors.Is(err, common.ErrInvalidInput):
		fmt.Fprintln(a.out, err.Error())
	default:
		fmt.Fprintln(a.out, "Operation failed:", err.Error())
	}
}
