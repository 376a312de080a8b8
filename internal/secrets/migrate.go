package secrets

import (
	"context"
	"database/sql"

	"sentinelkey/internal/cryptox"
	"sentinelkey/internal/dbx"
	"sentinelkey/internal/timex"
)

// Migrator re-encrypts legacy plaintext records in place. Early versions of
// the vault stored secret values as-is; records are told apart by the
// ciphertext format, so re-running a completed migration is a no-op.
type Migrator struct {
	db     *sql.DB
	cipher *cryptox.Cipher
	clock  timex.Clock
}

// NewMigrator constructs a migrator over the raw database handle; the whole
// batch runs in one transaction.
func NewMigrator(db *sql.DB, cipher *cryptox.Cipher, clock timex.Clock) *Migrator {
	return &Migrator{db: db, cipher: cipher, clock: clock}
}

// EncryptPlaintextRecords encrypts every record whose value does not match
// the ciphertext format and reports how many were rewritten. Any failure
// rolls the whole batch back, leaving the store as it was.
func (m *Migrator) EncryptPlaintextRecords(ctx context.Context) (int, error) {
	var updated int

	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewSQLRepository(tx)

		records, err := repo.ListAll(ctx)
		if err != nil {
			return err
		}

		for _, record := range records {
			if cryptox.IsCiphertext(record.EncryptedValue) {
				continue
			}
			encrypted, err := m.cipher.EncryptString(record.EncryptedValue)
			if err != nil {
				return err
			}
			if err := repo.UpdateValueByID(ctx, record.ID, encrypted, m.clock.Now()); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}
