package copytrade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/autopilot/internal/clients/venue"
	"github.com/aristath/autopilot/internal/domain"
	"github.com/aristath/autopilot/internal/modules/recurrence"
	"github.com/rs/zerolog"
)

// VenueFactory binds a venue client to a portfolio's credentials
type VenueFactory interface {
	ForCredentials(creds domain.VenueCredentials) domain.VenueClient
}

// PortfolioSaver persists a reconciled portfolio document.
// It returns domain.ErrStalePortfolio when the document changed or vanished.
type PortfolioSaver interface {
	Save(ctx context.Context, p *domain.Portfolio) error
}

// Service runs one copy-trade replay cycle per call
type Service struct {
	venues     VenueFactory
	portfolios PortfolioSaver
	audit      domain.StrategyLogger
	feedLimit  int
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates a new copy-trade service
func NewService(venues VenueFactory, portfolios PortfolioSaver, audit domain.StrategyLogger, log zerolog.Logger) *Service {
	return &Service{
		venues:     venues,
		portfolios: portfolios,
		audit:      audit,
		feedLimit:  venue.MaxTradesPerCycle,
		now:        time.Now,
		log:        log.With().Str("service", "copytrade").Logger(),
	}
}

// cycleResult is what one replay cycle did
type cycleResult struct {
	bootstrapped bool
	processed    int
	clamped      int
	skipped      int
}

// Reconcile replays the counterparty's new trades into the shadow ledger and
// saves ledger, anchor and schedule in one write. The first cycle of a
// portfolio only records an anchor.
func (s *Service) Reconcile(ctx context.Context, p *domain.Portfolio) error {
	if p.Provider != domain.ProviderCopyTrade {
		return fmt.Errorf("%w: portfolio %s has provider %q", domain.ErrConfiguration, p.ID, p.Provider)
	}
	if p.Replay == nil || p.Replay.CounterpartyAddress == "" {
		return fmt.Errorf("%w: portfolio %s has no counterparty to copy", domain.ErrConfiguration, p.ID)
	}
	if !p.Replay.Credentials.Complete() {
		return fmt.Errorf("%w: venue credentials for portfolio %s are incomplete", domain.ErrConfiguration, p.ID)
	}

	log := s.log.With().
		Str("portfolio_id", p.ID).
		Str("provider", string(p.Provider)).
		Str("strategy_id", p.StrategyID).
		Str("counterparty", p.Replay.CounterpartyAddress).
		Logger()

	client := s.venues.ForCredentials(p.Replay.Credentials)

	now := s.now().UTC()
	venueNow, err := client.ServerTime(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Venue time unavailable, signing with local clock")
		venueNow = now
	}

	cursor := *p.Replay
	ledger := NewLedger(p.Cash, p.Holdings)
	var result cycleResult

	if cursor.Bootstrapping() {
		anchor, err := s.bootstrapAnchor(ctx, client, cursor.CounterpartyAddress, venueNow)
		if err != nil {
			return err
		}
		cursor.LastTradeID = anchor.LastTradeID
		cursor.LastTradeMatchTime = anchor.LastTradeMatchTime
		result.bootstrapped = true
	} else {
		feed := venue.Trades(ctx, client, cursor.CounterpartyAddress, s.feedLimit)
		trades, err := CollectNewTrades(feed, cursor)
		if err != nil {
			return asUnavailable(err, "failed to read counterparty trades")
		}

		var fills []Fill
		ledger, fills = ReplayFills(ledger, trades)
		for _, f := range fills {
			switch {
			case f.Size.IsZero():
				result.skipped++
			case f.Clamped:
				result.clamped++
			}
		}
		result.processed = len(trades)

		if len(trades) > 0 {
			newest := trades[len(trades)-1]
			matchTime := newest.MatchTime
			cursor.LastTradeID = newest.ID
			cursor.LastTradeMatchTime = &matchTime
		}
	}

	holdings := ledger.Holdings()
	s.markToMarket(ctx, log, client, holdings)

	p.Replay = &cursor
	p.Cash = ledger.CashFloat()
	p.Holdings = holdings
	p.LastRebalancedAt = &now
	next := recurrence.NextDueTime(p.Cadence, now)
	p.NextRebalanceAt = &next
	p.RebalanceCount++

	if err := s.portfolios.Save(ctx, p); err != nil {
		if errors.Is(err, domain.ErrStalePortfolio) {
			log.Warn().Err(err).Msg("Portfolio changed or was deleted during the cycle, skipping save")
			s.record(ctx, p, domain.LogLevelWarn, "Portfolio changed during copy-trade sync, result discarded", map[string]interface{}{
				"error": err.Error(),
			})
			return nil
		}
		return fmt.Errorf("failed to save portfolio %s: %w", p.ID, err)
	}

	details := map[string]interface{}{
		"processed_trades": result.processed,
		"clamped_trades":   result.clamped,
		"skipped_trades":   result.skipped,
		"cash":             p.Cash,
		"positions":        len(p.Holdings),
		"last_trade_id":    cursor.LastTradeID,
		"next_rebalance":   next.Format(time.RFC3339),
	}
	if cursor.LastTradeMatchTime != nil {
		details["last_trade_match_time"] = cursor.LastTradeMatchTime.UTC().Format(time.RFC3339)
	}
	message := "Copy-trade sync completed"
	if result.bootstrapped {
		message = "Copy-trade sync anchored"
	}
	s.record(ctx, p, domain.LogLevelInfo, message, details)

	log.Info().
		Bool("bootstrap", result.bootstrapped).
		Int("processed", result.processed).
		Int("clamped", result.clamped).
		Float64("cash", p.Cash).
		Msg(message)
	return nil
}

// bootstrapAnchor anchors on the newest trade of the first page, or on venue
// time when the counterparty has no trades yet.
func (s *Service) bootstrapAnchor(ctx context.Context, client domain.VenueClient, maker string, venueNow time.Time) (domain.ReplayCursor, error) {
	var anchor domain.ReplayCursor
	for t, err := range venue.Trades(ctx, client, maker, 1) {
		if err != nil {
			return anchor, asUnavailable(err, "failed to read counterparty trades")
		}
		matchTime := t.MatchTime
		anchor.LastTradeID = t.ID
		anchor.LastTradeMatchTime = &matchTime
	}
	if anchor.LastTradeMatchTime == nil {
		anchorTime := venueNow.UTC()
		anchor.LastTradeMatchTime = &anchorTime
	}
	return anchor, nil
}

// markToMarket refreshes holding prices from their markets' token prices.
// Failures keep the last traded price.
func (s *Service) markToMarket(ctx context.Context, log zerolog.Logger, client domain.VenueClient, holdings []domain.Holding) {
	prices := make(map[string]float64)
	fetched := make(map[string]bool)

	for _, h := range holdings {
		if h.Market == "" || fetched[h.Market] {
			continue
		}
		fetched[h.Market] = true

		market, err := client.Market(ctx, h.Market)
		if err != nil {
			log.Debug().Err(err).Str("market", h.Market).Msg("Failed to refresh market prices")
			continue
		}
		for _, tok := range market.Tokens {
			if tok.Price > 0 {
				prices[tok.TokenID] = tok.Price
			}
		}
	}

	for i := range holdings {
		if price, ok := prices[holdings[i].Symbol]; ok {
			holdings[i].CurrentPrice = price
		}
	}
}

func (s *Service) record(ctx context.Context, p *domain.Portfolio, level, message string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.RecordLog(ctx, domain.StrategyLogEntry{
		StrategyID:   p.StrategyID,
		UserID:       p.OwnerID,
		StrategyName: p.StrategyName,
		Level:        level,
		Message:      message,
		Details:      details,
	})
}

func asUnavailable(err error, msg string) error {
	if errors.Is(err, domain.ErrVenueUnavailable) || errors.Is(err, domain.ErrConfiguration) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrVenueUnavailable, msg, err)
}
