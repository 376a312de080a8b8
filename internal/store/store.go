// Package store assembles the credential store: it opens the database
// backend selected by the DSN, applies the embedded goose migrations, and
// vends the account and secret repositories.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"sentinelkey/internal/accounts"
	"sentinelkey/internal/secrets"
	"sentinelkey/internal/store/migrations"
)

// Store owns the database handle and the repositories bound to it.
type Store struct {
	db       *sql.DB
	accounts accounts.Repository
	secrets  secrets.Repository
}

// Open connects to the database named by dsn and brings the schema up to
// date. A "postgres://" or "postgresql://" DSN selects the pgx backend;
// anything else is treated as an SQLite file path.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, dialect := driverFor(dsn)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if driver == "sqlite" {
		// SQLite tolerates one writer; more connections just contend
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &Store{
		db:       db,
		accounts: accounts.NewSQLRepository(db),
		secrets:  secrets.NewSQLRepository(db),
	}, nil
}

// Accounts returns the account repository.
func (s *Store) Accounts() accounts.Repository {
	return s.accounts
}

// Secrets returns the secret repository.
func (s *Store) Secrets() secrets.Repository {
	return s.secrets
}

// Conn exposes the raw handle for transactional batch work.
func (s *Store) Conn() *sql.DB {
	return s.db
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func driverFor(dsn string) (driver, dialect string) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx", "pgx"
	}
	return "sqlite", "sqlite3"
}

func runMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
