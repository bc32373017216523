package domain

import (
	"context"
	"time"
)

// BrokerClient is the gateway to a conventional brokerage account.
// One client is bound to one user's credentials.
type BrokerClient interface {
	Clock(ctx context.Context) (*BrokerClock, error)
	Positions(ctx context.Context) ([]BrokerPosition, error)
	Account(ctx context.Context) (*BrokerAccount, error)
	PlaceOrder(ctx context.Context, order OrderRequest) (*OrderResult, error)
	LatestTradePrice(ctx context.Context, symbol string) (float64, error)
}

// VenueClient is the gateway to the copy-trade venue
type VenueClient interface {
	ServerTime(ctx context.Context) (time.Time, error)
	TradesPage(ctx context.Context, maker string, cursor string) (*TradePage, error)
	Market(ctx context.Context, conditionID string) (*Market, error)
}

// StrategyLogEntry is one audit record
type StrategyLogEntry struct {
	ID           string                 `json:"id"`
	StrategyID   string                 `json:"strategy_id"`
	UserID       string                 `json:"user_id"`
	StrategyName string                 `json:"strategy_name"`
	Level        string                 `json:"level"`
	Message      string                 `json:"message"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Log levels used in the audit sink
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// StrategyLogger is the durable, best-effort audit sink.
// Implementations must never surface failures to the caller.
type StrategyLogger interface {
	RecordLog(ctx context.Context, entry StrategyLogEntry)
}
