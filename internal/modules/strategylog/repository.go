// Package strategylog is the durable audit trail of reconciliation cycles.
package strategylog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Repository handles strategy log database operations
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new strategy log repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "strategy_log").Logger(),
	}
}

// Insert stores one entry, filling in id and timestamp when absent
func (r *Repository) Insert(ctx context.Context, entry *domain.StrategyLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}

	var details interface{}
	if len(entry.Details) > 0 {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode log details: %w", err)
		}
		details = string(data)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO strategy_logs (id, strategy_id, user_id, strategy_name, level, message, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.StrategyID, entry.UserID, entry.StrategyName, entry.Level, entry.Message, details, entry.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert strategy log: %w", err)
	}
	return nil
}

// ListByStrategy returns the newest entries of a strategy first
func (r *Repository) ListByStrategy(ctx context.Context, strategyID string, limit int) ([]domain.StrategyLogEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, strategy_id, user_id, strategy_name, level, message, details, created_at
		FROM strategy_logs
		WHERE strategy_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, strategyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy logs: %w", err)
	}
	defer rows.Close()

	entries := []domain.StrategyLogEntry{}
	for rows.Next() {
		var (
			e       domain.StrategyLogEntry
			details sql.NullString
			created int64
		)
		if err := rows.Scan(&e.ID, &e.StrategyID, &e.UserID, &e.StrategyName, &e.Level, &e.Message, &details, &created); err != nil {
			return nil, fmt.Errorf("failed to scan strategy log: %w", err)
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				r.log.Warn().Err(err).Str("log_id", e.ID).Msg("Unreadable log details")
			}
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy logs: %w", err)
	}
	return entries, nil
}
