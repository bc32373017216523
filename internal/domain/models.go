// Package domain provides core domain models and types.
package domain

import (
	"math"
	"strings"
	"time"
)

// Provider selects which reconciliation engine owns a portfolio
type Provider string

const (
	// ProviderBroker rebalances against a conventional brokerage account
	ProviderBroker Provider = "broker"
	// ProviderCopyTrade replays a counterparty's trades into a shadow ledger
	ProviderCopyTrade Provider = "copytrade"
)

// Valid reports whether the provider is one of the known engines
func (p Provider) Valid() bool {
	return p == ProviderBroker || p == ProviderCopyTrade
}

// Cadence is how often a portfolio is reconciled
type Cadence string

const (
	CadenceEveryMinute    Cadence = "every_minute"
	CadenceEvery5Minutes  Cadence = "every_5_minutes"
	CadenceEvery15Minutes Cadence = "every_15_minutes"
	CadenceHourly         Cadence = "hourly"
	CadenceDaily          Cadence = "daily"
	CadenceWeekly         Cadence = "weekly"
	CadenceMonthly        Cadence = "monthly"
)

// TargetPosition is a raw, heterogeneous target entry as produced by a strategy.
// Exactly which of the three sizing fields is meaningful is decided by the
// normalizer; a zero value means "not given".
type TargetPosition struct {
	Symbol         string  `json:"symbol" msgpack:"symbol"`
	TargetWeight   float64 `json:"target_weight,omitempty" msgpack:"target_weight,omitempty"`
	TargetValue    float64 `json:"target_value,omitempty" msgpack:"target_value,omitempty"`
	TargetQuantity float64 `json:"target_quantity,omitempty" msgpack:"target_quantity,omitempty"`
}

// WeightedTarget is a normalized target: weights across a set sum to 1
type WeightedTarget struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

// Holding is a position recorded on the portfolio document.
// For copy-trade portfolios Symbol is the venue's opaque asset id.
type Holding struct {
	Symbol       string  `json:"symbol" msgpack:"symbol"`
	Quantity     float64 `json:"quantity" msgpack:"quantity"`
	AvgCost      float64 `json:"avg_cost" msgpack:"avg_cost"`
	CurrentPrice float64 `json:"current_price" msgpack:"current_price"`
	OrderID      string  `json:"order_id,omitempty" msgpack:"order_id,omitempty"`
	Market       string  `json:"market,omitempty" msgpack:"market,omitempty"`
	Outcome      string  `json:"outcome,omitempty" msgpack:"outcome,omitempty"`
}

// MarketValue returns quantity times current price
func (h Holding) MarketValue() float64 {
	return h.Quantity * h.CurrentPrice
}

// VenueCredentials authenticate against the copy-trade venue
type VenueCredentials struct {
	Address    string `json:"address" msgpack:"address"`
	APIKey     string `json:"-" msgpack:"api_key"`
	Secret     string `json:"-" msgpack:"secret"` // base64 encoded
	Passphrase string `json:"-" msgpack:"passphrase"`
}

// Complete reports whether every credential part is present
func (c VenueCredentials) Complete() bool {
	return c.Address != "" && c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

// ReplayCursor tracks how far a copy-trade portfolio has replayed the
// counterparty's trade history.
type ReplayCursor struct {
	CounterpartyAddress string           `json:"counterparty_address" msgpack:"counterparty_address"`
	Credentials         VenueCredentials `json:"credentials" msgpack:"credentials"`
	LastTradeID         string           `json:"last_trade_id,omitempty" msgpack:"last_trade_id,omitempty"`
	LastTradeMatchTime  *time.Time       `json:"last_trade_match_time,omitempty" msgpack:"last_trade_match_time,omitempty"`
}

// Bootstrapping reports whether no anchor has been recorded yet
func (c *ReplayCursor) Bootstrapping() bool {
	return c.LastTradeID == "" && c.LastTradeMatchTime == nil
}

// Portfolio is the aggregate root reconciled once per due cycle
type Portfolio struct {
	ID           string   `json:"id" msgpack:"id"`
	OwnerID      string   `json:"owner_id" msgpack:"owner_id"`
	StrategyID   string   `json:"strategy_id" msgpack:"strategy_id"`
	StrategyName string   `json:"strategy_name" msgpack:"strategy_name"`
	Provider     Provider `json:"provider" msgpack:"provider"`
	Cadence      Cadence  `json:"cadence" msgpack:"cadence"`

	NextRebalanceAt  *time.Time `json:"next_rebalance_at,omitempty" msgpack:"next_rebalance_at,omitempty"`
	LastRebalancedAt *time.Time `json:"last_rebalanced_at,omitempty" msgpack:"last_rebalanced_at,omitempty"`

	InitialInvestment float64 `json:"initial_investment" msgpack:"initial_investment"`
	CashLimit         float64 `json:"cash_limit,omitempty" msgpack:"cash_limit,omitempty"` // 0 means no ceiling
	CashBuffer        float64 `json:"cash_buffer" msgpack:"cash_buffer"`
	Cash              float64 `json:"cash" msgpack:"cash"` // shadow cash for copy-trade portfolios
	RebalanceCount    int     `json:"rebalance_count" msgpack:"rebalance_count"`

	TargetPositions []TargetPosition `json:"target_positions" msgpack:"target_positions"`
	Holdings        []Holding        `json:"holdings" msgpack:"holdings"`
	Replay          *ReplayCursor    `json:"replay,omitempty" msgpack:"replay,omitempty"`

	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`

	// Version is the optimistic concurrency token; it lives in its own column
	Version int64 `json:"version" msgpack:"-"`
}

// HasCashLimit reports whether a deployment ceiling is configured
func (p *Portfolio) HasCashLimit() bool {
	return p.CashLimit > 0
}

// ClampCashBuffer keeps the buffer within [0, cashLimit - initialInvestment]
// when a limit is set, and non-negative otherwise.
func (p *Portfolio) ClampCashBuffer() {
	if p.CashBuffer < 0 || math.IsNaN(p.CashBuffer) {
		p.CashBuffer = 0
	}
	if p.HasCashLimit() {
		ceiling := math.Max(0, p.CashLimit-p.InitialInvestment)
		if p.CashBuffer > ceiling {
			p.CashBuffer = ceiling
		}
	}
}

// IsDue reports whether the portfolio should be reconciled at now
func (p *Portfolio) IsDue(now time.Time) bool {
	return p.NextRebalanceAt == nil || !p.NextRebalanceAt.After(now)
}

// Holding returns the holding for symbol, if any
func (p *Portfolio) Holding(symbol string) (Holding, bool) {
	for _, h := range p.Holdings {
		if strings.EqualFold(h.Symbol, symbol) {
			return h, true
		}
	}
	return Holding{}, false
}

// HoldingsValue is the sum of recorded holding market values
func (p *Portfolio) HoldingsValue() float64 {
	total := 0.0
	for _, h := range p.Holdings {
		total += h.MarketValue()
	}
	return total
}

// Strategy describes target-generating logic. Portfolios reference it by id only.
type Strategy struct {
	ID          string           `json:"id"`
	OwnerID     string           `json:"owner_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Decisions   []TargetPosition `json:"decisions,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Adjustment is the transient per-cycle diff for one symbol. Never persisted.
type Adjustment struct {
	Symbol       string  `json:"symbol"`
	CurrentQty   float64 `json:"current_qty"`
	DesiredQty   float64 `json:"desired_qty"`
	CurrentPrice float64 `json:"current_price"`
	CurrentValue float64 `json:"current_value"`
	DesiredValue float64 `json:"desired_value"`
	TargetWeight float64 `json:"target_weight"`
}

// QtyDiff is desired minus current quantity
func (a Adjustment) QtyDiff() float64 {
	return a.DesiredQty - a.CurrentQty
}
