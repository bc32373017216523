// Package copytrade replays a counterparty's executed trades into a shadow
// ledger for copy-trade portfolios.
package copytrade

import (
	"sort"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/shopspring/decimal"
)

// sizePlaces is the precision a cash-clamped buy size is truncated to
const sizePlaces = 2

// Position is one shadow holding keyed by the venue's asset id
type Position struct {
	AssetID   string
	Market    string
	Outcome   string
	Quantity  decimal.Decimal
	AvgCost   decimal.Decimal
	LastPrice decimal.Decimal
}

// Ledger is the shadow cash and positions of a copy-trade portfolio.
// Ledgers are values: ApplyTrade never mutates its input.
type Ledger struct {
	Cash      decimal.Decimal
	Positions map[string]Position
}

// Fill is what a trade actually did to the ledger after clamping
type Fill struct {
	TradeID string
	Side    domain.TradeSide
	Size    decimal.Decimal
	Value   decimal.Decimal
	Clamped bool
}

// NewLedger builds a ledger from a persisted portfolio's cash and holdings
func NewLedger(cash float64, holdings []domain.Holding) Ledger {
	l := Ledger{Cash: decimal.NewFromFloat(cash), Positions: make(map[string]Position, len(holdings))}
	for _, h := range holdings {
		if h.Quantity <= 0 {
			continue
		}
		l.Positions[h.Symbol] = Position{
			AssetID:   h.Symbol,
			Market:    h.Market,
			Outcome:   h.Outcome,
			Quantity:  decimal.NewFromFloat(h.Quantity),
			AvgCost:   decimal.NewFromFloat(h.AvgCost),
			LastPrice: decimal.NewFromFloat(h.CurrentPrice),
		}
	}
	return l
}

// CashFloat returns cash as a float64
func (l Ledger) CashFloat() float64 {
	return l.Cash.InexactFloat64()
}

// Holdings returns the positions ordered by asset id
func (l Ledger) Holdings() []domain.Holding {
	ids := make([]string, 0, len(l.Positions))
	for id := range l.Positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	holdings := make([]domain.Holding, 0, len(ids))
	for _, id := range ids {
		p := l.Positions[id]
		holdings = append(holdings, domain.Holding{
			Symbol:       p.AssetID,
			Quantity:     p.Quantity.InexactFloat64(),
			AvgCost:      p.AvgCost.InexactFloat64(),
			CurrentPrice: p.LastPrice.InexactFloat64(),
			Market:       p.Market,
			Outcome:      p.Outcome,
		})
	}
	return holdings
}

func (l Ledger) clone() Ledger {
	positions := make(map[string]Position, len(l.Positions))
	for k, v := range l.Positions {
		positions[k] = v
	}
	return Ledger{Cash: l.Cash, Positions: positions}
}

// ApplyTrade folds one trade into the ledger
func ApplyTrade(l Ledger, t domain.Trade) Ledger {
	next, _ := Apply(l, t)
	return next
}

// Apply folds one trade into the ledger and reports the clamped fill.
//
// A BUY is shrunk to what cash affords, truncated to two decimals, and
// skipped only when that is zero. A SELL is clamped to the held quantity and
// a position sold down to zero is removed. Trades with a non-positive size or
// price, or an unknown side, leave the ledger unchanged.
func Apply(l Ledger, t domain.Trade) (Ledger, Fill) {
	fill := Fill{TradeID: t.ID, Side: t.Side, Size: decimal.Zero, Value: decimal.Zero}

	size := decimal.NewFromFloat(t.Size)
	price := decimal.NewFromFloat(t.Price)
	if !size.IsPositive() || !price.IsPositive() {
		return l, fill
	}

	switch t.Side {
	case domain.SideBuy:
		cost := size.Mul(price)
		if cost.GreaterThan(l.Cash) {
			size = l.Cash.Div(price).Truncate(sizePlaces)
			if size.Mul(price).GreaterThan(l.Cash) {
				// Div rounds at its precision limit
				size = size.Sub(decimal.New(1, -sizePlaces))
			}
			cost = size.Mul(price)
			fill.Clamped = true
		}
		if !size.IsPositive() {
			return l, fill
		}

		next := l.clone()
		pos, ok := next.Positions[t.AssetID]
		if !ok {
			pos = Position{AssetID: t.AssetID, Quantity: decimal.Zero, AvgCost: decimal.Zero}
		}
		total := pos.Quantity.Add(size)
		pos.AvgCost = pos.Quantity.Mul(pos.AvgCost).Add(cost).Div(total)
		pos.Quantity = total
		pos.LastPrice = price
		if t.Market != "" {
			pos.Market = t.Market
		}
		if t.Outcome != "" {
			pos.Outcome = t.Outcome
		}
		next.Positions[t.AssetID] = pos
		next.Cash = next.Cash.Sub(cost)

		fill.Size, fill.Value = size, cost
		return next, fill

	case domain.SideSell:
		pos, ok := l.Positions[t.AssetID]
		if !ok || !pos.Quantity.IsPositive() {
			return l, fill
		}
		if size.GreaterThan(pos.Quantity) {
			size = pos.Quantity
			fill.Clamped = true
		}
		proceeds := size.Mul(price)

		next := l.clone()
		pos.Quantity = pos.Quantity.Sub(size)
		pos.LastPrice = price
		if pos.Quantity.IsPositive() {
			next.Positions[t.AssetID] = pos
		} else {
			delete(next.Positions, t.AssetID)
		}
		next.Cash = next.Cash.Add(proceeds)

		fill.Size, fill.Value = size, proceeds
		return next, fill
	}

	return l, fill
}

// Replay folds trades, oldest first, into the ledger
func Replay(l Ledger, trades []domain.Trade) Ledger {
	for _, t := range trades {
		l = ApplyTrade(l, t)
	}
	return l
}

// ReplayFills is Replay that also returns each trade's fill
func ReplayFills(l Ledger, trades []domain.Trade) (Ledger, []Fill) {
	fills := make([]Fill, 0, len(trades))
	for _, t := range trades {
		var f Fill
		l, f = Apply(l, t)
		fills = append(fills, f)
	}
	return l, fills
}
