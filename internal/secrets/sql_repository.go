package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

func (r *SQLRepository) Insert(ctx context.Context, record *SecretRecord) error {
	// ON CONFLICT DO NOTHING makes the existence check and the insert one
	// atomic write on both backends; zero rows affected means the key was
	// already taken.
	query := `INSERT INTO secrets
		(id, username, service, service_username, encrypted_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (username, service) DO NOTHING`

	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	res, err := r.db.ExecContext(ctx, query,
		record.ID, record.Username, record.Service, record.ServiceUsername,
		record.EncryptedValue, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return common.ErrDuplicateService
	}
	return nil
}

func (r *SQLRepository) Find(ctx context.Context, username, service string) (*SecretRecord, error) {
	query := `SELECT id, username, service, service_username, encrypted_value, created_at, updated_at
		FROM secrets WHERE username = $1 AND service = $2`

	record := &SecretRecord{}
	err := r.db.QueryRowContext(ctx, query, username, service).Scan(
		&record.ID, &record.Username, &record.Service, &record.ServiceUsername,
		&record.EncryptedValue, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	return record, nil
}

func (r *SQLRepository) List(ctx context.Context, username string) ([]*SecretRecord, error) {
	query := `SELECT id, username, service, service_username, encrypted_value, created_at, updated_at
		FROM secrets WHERE username = $1 ORDER BY service`

	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (r *SQLRepository) UpdateValue(ctx context.Context, username, service, encryptedValue string, at time.Time) error {
	query := `UPDATE secrets SET encrypted_value = $1, updated_at = $2
		WHERE username = $3 AND service = $4`

	res, err := r.db.ExecContext(ctx, query, encryptedValue, at, username, service)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return checkAffected(res)
}

func (r *SQLRepository) Delete(ctx context.Context, username, service string) error {
	query := `DELETE FROM secrets WHERE username = $1 AND service = $2`

	res, err := r.db.ExecContext(ctx, query, username, service)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return checkAffected(res)
}

func (r *SQLRepository) ListAll(ctx context.Context) ([]*SecretRecord, error) {
	query := `SELECT id, username, service, service_username, encrypted_value, created_at, updated_at
		FROM secrets ORDER BY username, service`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (r *SQLRepository) UpdateValueByID(ctx context.Context, id, encryptedValue string, at time.Time) error {
	query := `UPDATE secrets SET encrypted_value = $1, updated_at = $2 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, encryptedValue, at, id)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return checkAffected(res)
}

func scanRecords(rows *sql.Rows) ([]*SecretRecord, error) {
	var records []*SecretRecord
	for rows.Next() {
		record := &SecretRecord{}
		err := rows.Scan(
			&record.ID, &record.Username, &record.Service, &record.ServiceUsername,
			&record.EncryptedValue, &record.CreatedAt, &record.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return records, nil
}

func checkAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}
