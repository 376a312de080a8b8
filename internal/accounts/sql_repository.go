package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentinelkey/internal/common"
	"sentinelkey/internal/dbx"
)

// SQLRepository implements Repository on any database/sql backend whose
// driver understands $1-style placeholders (pgx and modernc/sqlite both do).
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository returns a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, account *Account) (*Account, error) {
	query := `INSERT INTO accounts
		(id, username, password_hash, created_at, totp_secret, totp_enabled, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Username, account.PasswordHash, account.CreatedAt,
		account.TOTPSecret, account.TOTPEnabled, account.IsAdmin)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	return account, nil
}

func (r *SQLRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	query := `SELECT id, username, password_hash, created_at, last_login_at,
		totp_secret, totp_enabled, is_admin
		FROM accounts WHERE username = $1`

	account := &Account{}
	var lastLogin sql.NullTime
	var totpSecret sql.NullString

	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&account.ID, &account.Username, &account.PasswordHash, &account.CreatedAt,
		&lastLogin, &totpSecret, &account.TOTPEnabled, &account.IsAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		account.LastLoginAt = &t
	}
	account.TOTPSecret = totpSecret.String

	return account, nil
}

func (r *SQLRepository) SetLastLogin(ctx context.Context, username string, at time.Time) error {
	return r.updateField(ctx, username, "last_login_at", at)
}

func (r *SQLRepository) SetTOTPSecret(ctx context.Context, username, secret string) error {
	return r.updateField(ctx, username, "totp_secret", secret)
}

func (r *SQLRepository) SetTOTPEnabled(ctx context.Context, username string, enabled bool) error {
	return r.updateField(ctx, username, "totp_enabled", enabled)
}

func (r *SQLRepository) updateField(ctx context.Context, username, column string, value any) error {
	query := fmt.Sprintf(`UPDATE accounts SET %s = $1 WHERE username = $2`, column)

	res, err := r.db.ExecContext(ctx, query, value, username)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// isUniqueViolation matches unique-constraint errors from both backends
// without importing driver-specific error types.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
