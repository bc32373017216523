// Package portfolio persists portfolio documents.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository stores portfolios as msgpack documents with an optimistic
// version column. The schedule is denormalized into next_rebalance_at so the
// due-check can use an index.
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

const selectColumns = `SELECT id, version, document FROM portfolios`

// Create inserts a new portfolio. A missing id is generated, and a copy-trade
// portfolio without cash starts with its initial investment as shadow cash.
func (r *Repository) Create(ctx context.Context, p *domain.Portfolio) error {
	if !p.Provider.Valid() {
		return fmt.Errorf("unknown provider %q", p.Provider)
	}
	if strings.TrimSpace(p.OwnerID) == "" {
		return errors.New("owner id is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Provider == domain.ProviderCopyTrade && p.Cash == 0 {
		p.Cash = p.InitialInvestment
	}
	p.ClampCashBuffer()

	now := r.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1

	doc, err := msgpack.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode portfolio: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO portfolios (id, owner_id, strategy_id, provider, next_rebalance_at, version, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.OwnerID, p.StrategyID, string(p.Provider), nullableMillis(p.NextRebalanceAt), p.Version, doc, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert portfolio: %w", err)
	}

	r.log.Info().
		Str("portfolio_id", p.ID).
		Str("provider", string(p.Provider)).
		Str("owner_id", p.OwnerID).
		Msg("Portfolio created")
	return nil
}

// Get returns the portfolio with id or domain.ErrPortfolioNotFound
func (r *Repository) Get(ctx context.Context, id string) (*domain.Portfolio, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio %s: %w", id, err)
	}
	return p, nil
}

// List returns all portfolios of ownerID, or every portfolio when ownerID is empty
func (r *Repository) List(ctx context.Context, ownerID string) ([]*domain.Portfolio, error) {
	query := selectColumns
	var args []interface{}
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at, id`

	return r.query(ctx, query, args...)
}

// FindDue returns portfolios never scheduled or due at or before now,
// earliest first.
func (r *Repository) FindDue(ctx context.Context, now time.Time) ([]*domain.Portfolio, error) {
	return r.query(ctx, selectColumns+`
		WHERE next_rebalance_at IS NULL OR next_rebalance_at <= ?
		ORDER BY COALESCE(next_rebalance_at, 0), id
	`, now.UnixMilli())
}

// Save writes the document if it is still at p.Version and bumps the version.
// A concurrent update or delete returns domain.ErrStalePortfolio.
func (r *Repository) Save(ctx context.Context, p *domain.Portfolio) error {
	previous := p.UpdatedAt
	p.UpdatedAt = r.now().UTC()

	doc, err := msgpack.Marshal(p)
	if err != nil {
		p.UpdatedAt = previous
		return fmt.Errorf("failed to encode portfolio: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE portfolios
		SET strategy_id = ?, next_rebalance_at = ?, document = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, p.StrategyID, nullableMillis(p.NextRebalanceAt), doc, p.UpdatedAt.Unix(), p.ID, p.Version)
	if err != nil {
		p.UpdatedAt = previous
		return fmt.Errorf("failed to save portfolio %s: %w", p.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		p.UpdatedAt = previous
		return fmt.Errorf("failed to check save of portfolio %s: %w", p.ID, err)
	}
	if affected == 0 {
		p.UpdatedAt = previous
		return fmt.Errorf("%w: portfolio %s at version %d", domain.ErrStalePortfolio, p.ID, p.Version)
	}

	p.Version++
	return nil
}

// Delete removes a portfolio. In-flight cycles see a stale save.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete of portfolio %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
	}

	r.log.Info().Str("portfolio_id", id).Msg("Portfolio deleted")
	return nil
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Portfolio, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*domain.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			// One undecodable document must not hide the rest
			r.log.Error().Err(err).Msg("Skipping unreadable portfolio document")
			continue
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}
	return portfolios, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(row scanner) (*domain.Portfolio, error) {
	var (
		id      string
		version int64
		doc     []byte
	)
	if err := row.Scan(&id, &version, &doc); err != nil {
		return nil, err
	}

	var p domain.Portfolio
	if err := msgpack.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio %s: %w", id, err)
	}
	p.ID = id
	p.Version = version
	normalizeTimes(&p)
	return &p, nil
}

// normalizeTimes puts decoded timestamps back in UTC
func normalizeTimes(p *domain.Portfolio) {
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.NextRebalanceAt = utcPtr(p.NextRebalanceAt)
	p.LastRebalancedAt = utcPtr(p.LastRebalancedAt)
	if p.Replay != nil {
		p.Replay.LastTradeMatchTime = utcPtr(p.Replay.LastTradeMatchTime)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullableMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
