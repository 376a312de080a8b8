package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sentinelkey/internal/common"
	"sentinelkey/internal/cryptox"
	"sentinelkey/internal/timex"
)

// Service encrypts on the way in and decrypts on the way out; plaintext
// secret values never reach the Repository.
type Service struct {
	repo   Repository
	cipher *cryptox.Cipher
	clock  timex.Clock
}

// NewService constructs a secret service.
func NewService(repo Repository, cipher *cryptox.Cipher, clock timex.Clock) *Service {
	return &Service{repo: repo, cipher: cipher, clock: clock}
}

// Secret is a revealed credential, value decrypted.
type Secret struct {
	Service         string
	ServiceUsername string
	Value           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Save stores a new credential for (username, service). An existing record
// for that key is an error; updating goes through Update, never a silent
// upsert.
func (s *Service) Save(ctx context.Context, username, service, serviceUsername, value string) error {
	service = strings.TrimSpace(service)
	if username == "" || value == "" {
		return fmt.Errorf("%w: username and value are required", common.ErrInvalidInput)
	}
	if !ValidServiceName(service) {
		return fmt.Errorf("%w: service name must be non-empty letters, digits, spaces, hyphens or underscores", common.ErrInvalidInput)
	}

	encrypted, err := s.cipher.EncryptString(value)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	return s.repo.Insert(ctx, &SecretRecord{
		Username:        username,
		Service:         service,
		ServiceUsername: strings.TrimSpace(serviceUsername),
		EncryptedValue:  encrypted,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

// Update replaces the stored value of an existing credential. The service
// username is left as it was.
func (s *Service) Update(ctx context.Context, username, service, value string) error {
	service = strings.TrimSpace(service)
	if username == "" || service == "" || value == "" {
		return fmt.Errorf("%w: username, service and value are required", common.ErrInvalidInput)
	}

	encrypted, err := s.cipher.EncryptString(value)
	if err != nil {
		return err
	}

	return s.repo.UpdateValue(ctx, username, service, encrypted, s.clock.Now())
}

// Reveal fetches one credential and decrypts its value. A record that fails
// to decrypt surfaces the decrypt error; it is never shown as empty.
func (s *Service) Reveal(ctx context.Context, username, service string) (*Secret, error) {
	record, err := s.repo.Find(ctx, username, strings.TrimSpace(service))
	if err != nil {
		return nil, err
	}

	value, err := s.cipher.DecryptString(record.EncryptedValue)
	if err != nil {
		return nil, err
	}

	return &Secret{
		Service:         record.Service,
		ServiceUsername: record.ServiceUsername,
		Value:           value,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}, nil
}

// List returns the account's records sorted by service name, values still
// encrypted. Listing never decrypts; reveal one record at a time.
func (s *Service) List(ctx context.Context, username string) ([]*SecretRecord, error) {
	return s.repo.List(ctx, username)
}

// Delete removes one credential.
func (s *Service) Delete(ctx context.Context, username, service string) error {
	return s.repo.Delete(ctx, username, strings.TrimSpace(service))
}
