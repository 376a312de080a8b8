package secrets

import (
	"context"
	"time"
)

// Repository is the secret half of the credential store.
type Repository interface {
	// Insert stores a new record. A taken (username, service) key yields
	// common.ErrDuplicateService; the check and the insert are one
	// conditional write, not a read-then-insert.
	Insert(ctx context.Context, record *SecretRecord) error

	// Find returns common.ErrNotFound for an unknown (username, service).
	Find(ctx context.Context, username, service string) (*SecretRecord, error)

	// List returns all records for username, sorted by service name.
	List(ctx context.Context, username string) ([]*SecretRecord, error)

	// UpdateValue replaces the stored value of an existing record, leaving
	// the service username untouched. Missing record yields
	// common.ErrNotFound.
	UpdateValue(ctx context.Context, username, service, encryptedValue string, at time.Time) error

	// Delete removes a record; common.ErrNotFound if it was not there.
	Delete(ctx context.Context, username, service string) error

	// ListAll returns every record across all accounts. Used only by the
	// plaintext migration.
	ListAll(ctx context.Context) ([]*SecretRecord, error)

	// UpdateValueByID rewrites one record's value by primary key.
	UpdateValueByID(ctx context.Context, id, encryptedValue string, at time.Time) error
}
