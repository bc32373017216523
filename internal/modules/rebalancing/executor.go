package rebalancing

import (
	"context"
	"math"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/rs/zerolog"
)

// OrderPlacer submits a single order
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResult, error)
}

// ExecutedOrder is an order the broker accepted
type ExecutedOrder struct {
	Symbol         string           `json:"symbol"`
	Side           domain.OrderSide `json:"side"`
	Quantity       float64          `json:"quantity"`
	Price          float64          `json:"price"`
	EstimatedValue float64          `json:"estimated_value"`
	OrderID        string           `json:"order_id"`
	Status         string           `json:"status"`
	Partial        bool             `json:"partial,omitempty"`
}

// FailedOrder is an order the broker refused or that could not be sent
type FailedOrder struct {
	Symbol   string           `json:"symbol"`
	Side     domain.OrderSide `json:"side"`
	Quantity float64          `json:"quantity"`
	Error    string           `json:"error"`
}

// ExecutionReport summarizes one executed batch
type ExecutionReport struct {
	Orders        []ExecutedOrder `json:"orders"`
	Failures      []FailedOrder   `json:"failures"`
	Skipped       []string        `json:"skipped,omitempty"`
	SellProceeds  float64         `json:"sell_proceeds"`
	AvailableCash float64         `json:"available_cash"`
	SpentOnBuys   float64         `json:"spent_on_buys"`
}

// RemainingCash is the cash left undeployed after buys
func (r *ExecutionReport) RemainingCash() float64 {
	return math.Max(0, r.AvailableCash-r.SpentOnBuys)
}

// Executor sequences sells before buys and sizes buys to the cash available
type Executor struct {
	log zerolog.Logger
}

// NewExecutor creates a new order executor
func NewExecutor(log zerolog.Logger) *Executor {
	return &Executor{log: log.With().Str("component", "executor").Logger()}
}

// Execute places every sell, then buys greedily in plan order.
//
// Sells never exceed the held quantity. Buys draw from
// min(budget, accountCash + sellProceeds): an order that does not fit is
// shrunk to floor(remaining / price) shares, or skipped when that is zero.
// A failed order is recorded and the rest of the batch still runs; the next
// cycle recomputes from fresh broker state.
func (e *Executor) Execute(
	ctx context.Context,
	broker OrderPlacer,
	adjustments []domain.Adjustment,
	budget float64,
	accountCash float64,
) *ExecutionReport {
	report := &ExecutionReport{}

	for _, adj := range adjustments {
		if Classify(adj) != ActionSell {
			continue
		}
		qty := math.Min(adj.CurrentQty, math.Abs(adj.QtyDiff()))
		if qty <= 0 {
			continue
		}

		order, ok := e.place(ctx, broker, report, adj, domain.OrderSideSell, qty, false)
		if !ok {
			continue
		}
		if proceeds := order.EstimatedValue; proceeds > 0 {
			report.SellProceeds += proceeds
		}
	}

	report.AvailableCash = math.Max(0, math.Min(budget, accountCash+report.SellProceeds))
	remaining := report.AvailableCash

	for _, adj := range adjustments {
		if Classify(adj) != ActionBuy {
			continue
		}
		if adj.CurrentPrice <= 0 {
			report.Skipped = append(report.Skipped, adj.Symbol)
			e.log.Warn().Str("symbol", adj.Symbol).Msg("No price available, skipping buy")
			continue
		}

		qty := adj.QtyDiff()
		partial := false
		if qty*adj.CurrentPrice > remaining {
			qty = math.Floor(remaining / adj.CurrentPrice)
			partial = true
		}
		if qty <= 0 {
			report.Skipped = append(report.Skipped, adj.Symbol)
			e.log.Debug().
				Str("symbol", adj.Symbol).
				Float64("remaining_cash", remaining).
				Msg("Insufficient cash for a single share, skipping buy")
			continue
		}

		order, ok := e.place(ctx, broker, report, adj, domain.OrderSideBuy, qty, partial)
		if !ok {
			continue
		}
		remaining -= order.EstimatedValue
		report.SpentOnBuys += order.EstimatedValue
	}

	return report
}

func (e *Executor) place(
	ctx context.Context,
	broker OrderPlacer,
	report *ExecutionReport,
	adj domain.Adjustment,
	side domain.OrderSide,
	qty float64,
	partial bool,
) (ExecutedOrder, bool) {
	result, err := broker.PlaceOrder(ctx, domain.OrderRequest{Symbol: adj.Symbol, Quantity: qty, Side: side})
	if err != nil {
		e.log.Error().
			Err(err).
			Str("symbol", adj.Symbol).
			Str("side", string(side)).
			Float64("quantity", qty).
			Msg("Order failed, continuing with remaining orders")
		report.Failures = append(report.Failures, FailedOrder{
			Symbol:   adj.Symbol,
			Side:     side,
			Quantity: qty,
			Error:    err.Error(),
		})
		return ExecutedOrder{}, false
	}

	order := ExecutedOrder{
		Symbol:         adj.Symbol,
		Side:           side,
		Quantity:       qty,
		Price:          adj.CurrentPrice,
		EstimatedValue: qty * adj.CurrentPrice,
		Partial:        partial,
	}
	if result != nil {
		order.OrderID = result.OrderID
		order.Status = result.Status
	}
	report.Orders = append(report.Orders, order)

	e.log.Info().
		Str("symbol", adj.Symbol).
		Str("side", string(side)).
		Float64("quantity", qty).
		Float64("estimated_value", order.EstimatedValue).
		Bool("partial", partial).
		Str("order_id", order.OrderID).
		Msg("Order placed")

	return order, true
}
