package login

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sentinelkey/internal/accounts"
	"sentinelkey/internal/common"
	"sentinelkey/internal/lockout"
	"sentinelkey/internal/logging"
	"sentinelkey/internal/session"
	"sentinelkey/internal/totp"
)

// --- helpers ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopLogger struct{}

func (nopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (nopLogger) Error(ctx context.Context, msg string, args ...any) {}
func (nopLogger) With(args ...any) logging.Logger                    { return nopLogger{} }

type fakeRepo struct {
	accounts map[string]*accounts.Account
	getErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: make(map[string]*accounts.Account)}
}

func (f *fakeRepo) Create(ctx context.Context, a *accounts.Account) (*accounts.Account, error) {
	if _, ok := f.accounts[a.Username]; ok {
		return nil, common.ErrDuplicateUsername
	}
	cp := *a
	f.accounts[a.Username] = &cp
	return &cp, nil
}

func (f *fakeRepo) GetByUsername(ctx context.Context, username string) (*accounts.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.accounts[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) SetLastLogin(ctx context.Context, username string, at time.Time) error {
	a, ok := f.accounts[username]
	if !ok {
		return common.ErrNotFound
	}
	a.LastLoginAt = &at
	return nil
}

func (f *fakeRepo) SetTOTPSecret(ctx context.Context, username, secret string) error {
	a, ok := f.accounts[username]
	if !ok {
		return common.ErrNotFound
	}
	a.TOTPSecret = secret
	return nil
}

func (f *fakeRepo) SetTOTPEnabled(ctx context.Context, username string, enabled bool) error {
	a, ok := f.accounts[username]
	if !ok {
		return common.ErrNotFound
	}
	a.TOTPEnabled = enabled
	return nil
}

type fixture struct {
	repo       *fakeRepo
	clock      *fakeClock
	accountSvc *accounts.Service
	session    *session.Manager
	orch       *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	clock := newFakeClock()
	accountSvc := accounts.NewService(repo, bcrypt.MinCost, "SentinelKey", clock)
	loginGuard := lockout.New(3, time.Minute, clock)
	twoFAGuard := lockout.New(3, time.Minute, clock)
	sess := session.NewManager(600*time.Second, clock)

	orch := NewOrchestrator(accountSvc, loginGuard, twoFAGuard, sess, clock,
		nopLogger{}, []byte("0123456789abcdef"), 15*time.Minute)

	return &fixture{
		repo:       repo,
		clock:      clock,
		accountSvc: accountSvc,
		session:    sess,
		orch:       orch,
	}
}

func (f *fixture) register(t *testing.T, username, password string) {
	t.Helper()
	require.NoError(t, f.accountSvc.Register(context.Background(), username, password))
}

// enable2FA enrolls and confirms a secret for username, returning the secret.
func (f *fixture) enable2FA(t *testing.T, username string) string {
	t.Helper()
	ctx := context.Background()
	enrollment, err := f.accountSvc.InitTwoFactor(ctx, username)
	require.NoError(t, err)
	code, err := totp.CodeAt(enrollment.Secret, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.accountSvc.ConfirmTwoFactor(ctx, username, code))
	return enrollment.Secret
}

// --- tests ---

func TestSubmitPassword_NoTwoFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")

	result, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, result.Status)
	assert.NotEmpty(t, result.AccessToken)

	user, ok := f.session.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "alice", user)

	a, err := f.accountSvc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, a.LastLoginAt)
}

func TestSubmitPassword_WrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")

	_, err := f.orch.SubmitPassword(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.False(t, f.session.Authenticated())
}

func TestSubmitPassword_UnknownUserIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")

	errKnown := func() error {
		_, err := f.orch.SubmitPassword(ctx, "alice", "wrong")
		return err
	}()
	errUnknown := func() error {
		_, err := f.orch.SubmitPassword(ctx, "ghost", "wrong")
		return err
	}()

	assert.ErrorIs(t, errKnown, common.ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, common.ErrInvalidCredentials)
	assert.Equal(t, errKnown.Error(), errUnknown.Error())
}

func TestSubmitPassword_LockoutAfterThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")

	_, err := f.orch.SubmitPassword(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = f.orch.SubmitPassword(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	// third consecutive failure triggers the lock
	_, err = f.orch.SubmitPassword(ctx, "alice", "wrong")
	var locked *common.LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, time.Minute, locked.Remaining)

	// even the correct password is refused while locked
	_, err = f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	assert.ErrorIs(t, err, common.ErrLocked)

	// after the lock expires the flow restarts cleanly
	f.clock.Advance(61 * time.Second)
	result, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, result.Status)
}

func TestSubmitPassword_StoreOutageNotCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")

	// during an outage, every attempt surfaces the store error and none of
	// them consumes a lockout attempt
	f.repo.getErr = common.ErrStoreUnavailable
	for i := 0; i < 3; i++ {
		_, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
		assert.ErrorIs(t, err, common.ErrStoreUnavailable)
		assert.NotErrorIs(t, err, common.ErrLocked)
	}

	// once the store recovers, the correct password logs in immediately
	f.repo.getErr = nil
	result, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, result.Status)
}

func TestSubmitPassword_SuccessResetsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")

	for i := 0; i < 2; i++ {
		_, err := f.orch.SubmitPassword(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	}

	_, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)
	f.orch.Logout()

	// the counter restarted: two more failures still do not lock
	for i := 0; i < 2; i++ {
		_, err := f.orch.SubmitPassword(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, common.ErrInvalidCredentials)
		assert.NotErrorIs(t, err, common.ErrLocked)
	}
}

func TestTwoFactorFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")
	secret := f.enable2FA(t, "alice")

	result, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingTwoFactor, result.Status)
	assert.Empty(t, result.AccessToken)
	assert.False(t, f.session.Authenticated())
	assert.Equal(t, session.StepAwaitingTwoFactor, f.session.Step())

	code, err := totp.CodeAt(secret, f.clock.Now())
	require.NoError(t, err)

	result, err = f.orch.SubmitTwoFactor(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, result.Status)
	assert.NotEmpty(t, result.AccessToken)

	// pending credentials are gone once the session is established
	_, _, ok := f.session.Pending()
	assert.False(t, ok)
}

func TestSubmitTwoFactor_WithoutPendingLogin(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.SubmitTwoFactor(context.Background(), "123456")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestSubmitTwoFactor_MalformedCodeNotCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")
	secret := f.enable2FA(t, "alice")

	_, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)

	// malformed input re-prompts without consuming attempts
	for i := 0; i < 5; i++ {
		_, err = f.orch.SubmitTwoFactor(ctx, "abc")
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	}

	code, err := totp.CodeAt(secret, f.clock.Now())
	require.NoError(t, err)
	result, err := f.orch.SubmitTwoFactor(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, result.Status)
}

func TestSubmitTwoFactor_LockClearsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")
	secret := f.enable2FA(t, "alice")

	_, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)

	_, err = f.orch.SubmitTwoFactor(ctx, "000000")
	assert.ErrorIs(t, err, common.ErrInvalidCode)
	_, err = f.orch.SubmitTwoFactor(ctx, "000000")
	assert.ErrorIs(t, err, common.ErrInvalidCode)

	// third wrong code locks the 2fa key and clears the held credentials
	_, err = f.orch.SubmitTwoFactor(ctx, "000000")
	var locked *common.LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, time.Minute, locked.Remaining)

	_, _, ok := f.session.Pending()
	assert.False(t, ok)

	// with nothing pending, the code step refuses further input
	_, err = f.orch.SubmitTwoFactor(ctx, "000000")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	// after the lock expires the whole flow restarts from the password step
	f.clock.Advance(61 * time.Second)
	result, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingTwoFactor, result.Status)

	code, err := totp.CodeAt(secret, f.clock.Now())
	require.NoError(t, err)
	result, err = f.orch.SubmitTwoFactor(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, result.Status)
}

func TestSubmitTwoFactor_StaleSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")
	secret := f.enable2FA(t, "alice")

	_, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)

	// the password changes while the code step is outstanding
	newHash, err := bcrypt.GenerateFromPassword([]byte("Chang3dPass!"), bcrypt.MinCost)
	require.NoError(t, err)
	f.repo.accounts["alice"].PasswordHash = newHash

	code, err := totp.CodeAt(secret, f.clock.Now())
	require.NoError(t, err)

	_, err = f.orch.SubmitTwoFactor(ctx, code)
	assert.ErrorIs(t, err, common.ErrStaleSession)
	assert.False(t, f.session.Authenticated())
	_, _, ok := f.session.Pending()
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")

	_, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)
	require.True(t, f.session.Authenticated())

	f.orch.Logout()
	assert.False(t, f.session.Authenticated())
}

func TestSessionIdleTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "Str0ngPass!")

	_, err := f.orch.SubmitPassword(ctx, "alice", "Str0ngPass!")
	require.NoError(t, err)

	f.clock.Advance(601 * time.Second)
	assert.True(t, f.session.CheckTimeout())
	assert.False(t, f.session.Authenticated())
}
