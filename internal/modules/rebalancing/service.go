// Package rebalancing converges broker-backed portfolios onto their target weights.
package rebalancing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/aristath/autopilot/internal/modules/recurrence"
	"github.com/rs/zerolog"
)

// Service runs one broker reconciliation cycle per call
type Service struct {
	credentials CredentialProvider
	brokers     BrokerFactory
	evaluator   TargetEvaluator
	portfolios  PortfolioSaver
	audit       domain.StrategyLogger
	executor    *Executor
	now         func() time.Time
	log         zerolog.Logger
}

// NewService creates a new rebalancing service
func NewService(
	credentials CredentialProvider,
	brokers BrokerFactory,
	evaluator TargetEvaluator,
	portfolios PortfolioSaver,
	audit domain.StrategyLogger,
	log zerolog.Logger,
) *Service {
	return &Service{
		credentials: credentials,
		brokers:     brokers,
		evaluator:   evaluator,
		portfolios:  portfolios,
		audit:       audit,
		executor:    NewExecutor(log),
		now:         time.Now,
		log:         log.With().Str("service", "rebalancing").Logger(),
	}
}

// Reconcile runs one cycle for a broker portfolio: market-hours gate, target
// normalization, planning, execution and a single save of holdings and schedule.
// A market-closed skip only advances the schedule. A stale document at save
// time is logged and the cycle ends without error.
func (s *Service) Reconcile(ctx context.Context, p *domain.Portfolio) error {
	if p.Provider != domain.ProviderBroker {
		return fmt.Errorf("%w: portfolio %s has provider %q", domain.ErrConfiguration, p.ID, p.Provider)
	}

	log := s.log.With().
		Str("portfolio_id", p.ID).
		Str("provider", string(p.Provider)).
		Str("strategy_id", p.StrategyID).
		Logger()

	creds, err := s.credentials.BrokerCredentials(ctx, p.OwnerID)
	if err != nil {
		return asConfigurationError(err, "failed to load broker credentials")
	}
	if !creds.Valid() {
		return fmt.Errorf("%w: broker credentials for owner %s are incomplete", domain.ErrConfiguration, p.OwnerID)
	}
	client := s.brokers.ForCredentials(creds)

	now := s.now().UTC()

	clock, err := client.Clock(ctx)
	if err != nil {
		return asUnavailable(err, "failed to get market clock")
	}
	if !clock.IsOpen {
		return s.rescheduleClosed(ctx, log, p, now, clock.NextOpen)
	}

	positions, err := client.Positions(ctx)
	if err != nil {
		return asUnavailable(err, "failed to get positions")
	}
	account, err := client.Account(ctx)
	if err != nil {
		return asUnavailable(err, "failed to get account")
	}

	targets, err := s.evaluator.Evaluate(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to evaluate strategy %s: %w", p.StrategyID, err)
	}
	weights := NormalizeTargets(targets)
	if len(weights) == 0 {
		return fmt.Errorf("%w: strategy %s produced no usable targets", domain.ErrInvalidTargets, p.StrategyID)
	}

	known := make(map[string]float64, len(positions))
	positionsValue := 0.0
	for _, pos := range positions {
		known[strings.ToUpper(pos.Symbol)] = pos.CurrentPrice
		positionsValue += positionValue(pos)
	}
	symbols := make([]string, 0, len(weights))
	for _, w := range weights {
		symbols = append(symbols, w.Symbol)
	}
	prices := NewPriceResolver(client, log).Resolve(ctx, symbols, known)

	budget := DeriveBudget(p, positionsValue, account.Cash)
	adjustments := PlanAdjustments(weights, budget, positions, prices)

	log.Info().
		Float64("budget", budget).
		Float64("positions_value", positionsValue).
		Float64("account_cash", account.Cash).
		Int("adjustments", len(adjustments)).
		Msg("Planned rebalance")

	report := s.executor.Execute(ctx, client, adjustments, budget, account.Cash)

	p.TargetPositions = targets
	p.Holdings = projectHoldings(positions, prices, report)
	p.CashBuffer = UndeployedBudget(budget, positionsValue, report)
	p.ClampCashBuffer()
	p.LastRebalancedAt = &now
	next := recurrence.NextDueTime(p.Cadence, now)
	p.NextRebalanceAt = &next
	p.RebalanceCount++

	if err := s.portfolios.Save(ctx, p); err != nil {
		return s.handleSaveError(ctx, log, p, err)
	}

	level := domain.LogLevelInfo
	message := "Rebalance completed"
	if len(report.Failures) > 0 {
		level = domain.LogLevelWarn
		message = "Rebalance completed with failed orders"
	}
	s.record(ctx, p, level, message, map[string]interface{}{
		"budget":          budget,
		"account_cash":    account.Cash,
		"sell_proceeds":   report.SellProceeds,
		"available_cash":  report.AvailableCash,
		"spent_on_buys":   report.SpentOnBuys,
		"remaining_cash":  report.RemainingCash(),
		"cash_buffer":     p.CashBuffer,
		"orders":          report.Orders,
		"failed_orders":   report.Failures,
		"skipped":         report.Skipped,
		"next_rebalance":  next.Format(time.RFC3339),
		"rebalance_count": p.RebalanceCount,
	})

	log.Info().
		Int("orders", len(report.Orders)).
		Int("failed", len(report.Failures)).
		Time("next_rebalance_at", next).
		Msg("Rebalance completed")
	return nil
}

func (s *Service) rescheduleClosed(ctx context.Context, log zerolog.Logger, p *domain.Portfolio, now, nextOpen time.Time) error {
	next := ClosedMarketReschedule(p, now, nextOpen)
	p.NextRebalanceAt = &next

	if err := s.portfolios.Save(ctx, p); err != nil {
		return s.handleSaveError(ctx, log, p, err)
	}

	details := map[string]interface{}{"next_rebalance": next.Format(time.RFC3339)}
	if !nextOpen.IsZero() {
		details["next_open"] = nextOpen.UTC().Format(time.RFC3339)
	}
	s.record(ctx, p, domain.LogLevelInfo, "Market closed, rebalance rescheduled", details)

	log.Info().Time("next_rebalance_at", next).Msg("Market closed, rebalance rescheduled")
	return nil
}

func (s *Service) handleSaveError(ctx context.Context, log zerolog.Logger, p *domain.Portfolio, err error) error {
	if errors.Is(err, domain.ErrStalePortfolio) {
		log.Warn().Err(err).Msg("Portfolio changed or was deleted during the cycle, skipping save")
		s.record(ctx, p, domain.LogLevelWarn, "Portfolio changed during rebalance, result discarded", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return fmt.Errorf("failed to save portfolio %s: %w", p.ID, err)
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

func positionValue(pos domain.BrokerPosition) float64 {
	if pos.MarketValue != 0 {
		return pos.MarketValue
	}
	return pos.Quantity * pos.CurrentPrice
}

// projectHoldings applies accepted orders to the pre-trade positions.
// Fully sold symbols are dropped; buys update the weighted average cost.
func projectHoldings(positions []domain.BrokerPosition, prices map[string]float64, report *ExecutionReport) []domain.Holding {
	var order []string
	bySymbol := make(map[string]*domain.Holding, len(positions)+len(report.Orders))

	for _, pos := range positions {
		symbol := strings.ToUpper(pos.Symbol)
		price := pos.CurrentPrice
		if resolved, ok := prices[symbol]; ok && resolved > 0 {
			price = resolved
		}
		bySymbol[symbol] = &domain.Holding{
			Symbol:       symbol,
			Quantity:     pos.Quantity,
			AvgCost:      pos.AvgEntryPrice,
			CurrentPrice: price,
		}
		order = append(order, symbol)
	}

	for _, o := range report.Orders {
		h, ok := bySymbol[o.Symbol]
		if !ok {
			h = &domain.Holding{Symbol: o.Symbol, CurrentPrice: o.Price}
			bySymbol[o.Symbol] = h
			order = append(order, o.Symbol)
		}
		switch o.Side {
		case domain.OrderSideBuy:
			total := h.Quantity + o.Quantity
			if total > 0 {
				h.AvgCost = (h.Quantity*h.AvgCost + o.Quantity*o.Price) / total
			}
			h.Quantity = total
		case domain.OrderSideSell:
			h.Quantity -= o.Quantity
			if h.Quantity < 0 {
				h.Quantity = 0
			}
		}
		h.OrderID = o.OrderID
	}

	holdings := make([]domain.Holding, 0, len(order))
	for _, symbol := range order {
		if h := bySymbol[symbol]; h.Quantity > 0 {
			holdings = append(holdings, *h)
		}
	}
	return holdings
}

func asConfigurationError(err error, msg string) error {
	if errors.Is(err, domain.ErrConfiguration) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrConfiguration, msg, err)
}

func asUnavailable(err error, msg string) error {
	if errors.Is(err, domain.ErrVenueUnavailable) || errors.Is(err, domain.ErrConfiguration) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrVenueUnavailable, msg, err)
}
