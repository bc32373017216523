package domain

import (
	"strings"
	"time"
)

// TradeSide is BUY or SELL as reported by the venue
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// ParseTradeSide normalizes a venue side string; unknown values are returned as-is uppercased
func ParseTradeSide(s string) TradeSide {
	return TradeSide(strings.ToUpper(strings.TrimSpace(s)))
}

// Trade is an executed counterparty trade read from the venue feed.
// The feed orders trades by its opaque cursor; MatchTime is a secondary order.
type Trade struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	Market    string    `json:"market"`
	Outcome   string    `json:"outcome"`
	Side      TradeSide `json:"side"`
	Size      float64   `json:"size"`
	Price     float64   `json:"price"`
	MatchTime time.Time `json:"match_time"`
}

// TradePage is one page of the venue's trade history
type TradePage struct {
	Trades     []Trade
	NextCursor string
}

// MarketToken is one outcome token of a venue market
type MarketToken struct {
	TokenID string  `json:"token_id"`
	Price   float64 `json:"price"`
	Outcome string  `json:"outcome"`
}

// Market is a venue market with its outcome tokens
type Market struct {
	ConditionID string        `json:"condition_id"`
	Tokens      []MarketToken `json:"tokens"`
}
