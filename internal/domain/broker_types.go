package domain

// Broker-agnostic types for the rebalancing engine.
// These abstract away the wire format of the brokerage REST API.

import "time"

// OrderSide is the side of a broker order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// BrokerCredentials is the per-user key-id/secret-key pair
type BrokerCredentials struct {
	KeyID     string
	SecretKey string
}

// Valid reports whether both parts of the keypair are present
func (c BrokerCredentials) Valid() bool {
	return c.KeyID != "" && c.SecretKey != ""
}

// BrokerClock is the venue's trading clock
type BrokerClock struct {
	IsOpen   bool
	NextOpen time.Time // Zero when the broker did not report one
}

// BrokerPosition is a live position on the brokerage account
type BrokerPosition struct {
	Symbol        string
	Quantity      float64
	CurrentPrice  float64
	AvgEntryPrice float64
	MarketValue   float64
	CostBasis     float64
}

// BrokerAccount is the brokerage account summary
type BrokerAccount struct {
	Cash float64
}

// OrderRequest is a market order with good-til-cancelled time in force
type OrderRequest struct {
	Symbol   string
	Quantity float64
	Side     OrderSide
}

// OrderResult is the broker's acknowledgement of an order
type OrderResult struct {
	OrderID  string
	Symbol   string
	Side     OrderSide
	Quantity float64
	Status   string
}
