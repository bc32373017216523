// Package strategy stores strategy descriptions and evaluates them into targets.
package strategy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrStrategyNotFound means no strategy exists with the given id
var ErrStrategyNotFound = errors.New("strategy not found")

// Repository handles strategy database operations
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new strategy repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "strategy").Logger(),
	}
}

// Upsert creates or replaces a strategy
func (r *Repository) Upsert(ctx context.Context, s *domain.Strategy) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := r.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	var decisions []byte
	if len(s.Decisions) > 0 {
		var err error
		decisions, err = msgpack.Marshal(s.Decisions)
		if err != nil {
			return fmt.Errorf("failed to encode decisions: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO strategies (id, owner_id, name, description, decisions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			description = excluded.description,
			decisions = excluded.decisions,
			updated_at = excluded.updated_at
	`, s.ID, s.OwnerID, s.Name, s.Description, decisions, s.CreatedAt.Unix(), s.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert strategy: %w", err)
	}
	return nil
}

// Get returns the strategy with id or ErrStrategyNotFound
func (r *Repository) Get(ctx context.Context, id string) (*domain.Strategy, error) {
	var (
		s         domain.Strategy
		decisions []byte
		created   int64
		updated   int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, description, decisions, created_at, updated_at
		FROM strategies WHERE id = ?
	`, id).Scan(&s.ID, &s.OwnerID, &s.Name, &s.Description, &decisions, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy %s: %w", id, err)
	}

	if len(decisions) > 0 {
		if err := msgpack.Unmarshal(decisions, &s.Decisions); err != nil {
			return nil, fmt.Errorf("failed to decode decisions of strategy %s: %w", id, err)
		}
	}
	s.CreatedAt = time.Unix(created, 0).UTC()
	s.UpdatedAt = time.Unix(updated, 0).UTC()
	return &s, nil
}
