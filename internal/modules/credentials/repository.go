// Package credentials stores per-owner broker keypairs.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles broker credential database operations
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new credential repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "credentials").Logger(),
	}
}

// Put stores or replaces the keypair of ownerID
func (r *Repository) Put(ctx context.Context, ownerID string, creds domain.BrokerCredentials) error {
	creds.KeyID = strings.TrimSpace(creds.KeyID)
	creds.SecretKey = strings.TrimSpace(creds.SecretKey)
	if ownerID == "" || !creds.Valid() {
		return fmt.Errorf("%w: owner and both keys are required", domain.ErrConfiguration)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO broker_credentials (owner_id, key_id, secret_key, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			key_id = excluded.key_id,
			secret_key = excluded.secret_key,
			updated_at = excluded.updated_at
	`, ownerID, creds.KeyID, creds.SecretKey, r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store broker credentials: %w", err)
	}

	r.log.Info().Str("owner_id", ownerID).Msg("Broker credentials updated")
	return nil
}

// BrokerCredentials returns the keypair of ownerID.
// A missing row is a configuration error for that owner's portfolios.
func (r *Repository) BrokerCredentials(ctx context.Context, ownerID string) (domain.BrokerCredentials, error) {
	var creds domain.BrokerCredentials
	err := r.db.QueryRowContext(ctx, `
		SELECT key_id, secret_key FROM broker_credentials WHERE owner_id = ?
	`, ownerID).Scan(&creds.KeyID, &creds.SecretKey)
	if errors.Is(err, sql.ErrNoRows) {
		return creds, fmt.Errorf("%w: no broker credentials for owner %s", domain.ErrConfiguration, ownerID)
	}
	if err != nil {
		return creds, fmt.Errorf("failed to load broker credentials: %w", err)
	}
	return creds, nil
}

// Delete removes the keypair of ownerID
func (r *Repository) Delete(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM broker_credentials WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("failed to delete broker credentials: %w", err)
	}
	return nil
}
