package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolio_ClampCashBuffer(t *testing.T) {
	tests := []struct {
		name     string
		initial  float64
		limit    float64
		buffer   float64
		expected float64
	}{
		{"within range", 1000, 1500, 200, 200},
		{"above ceiling", 1000, 1500, 900, 500},
		{"negative", 1000, 1500, -50, 0},
		{"no limit keeps buffer", 1000, 0, 900, 900},
		{"limit below investment", 1000, 800, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Portfolio{InitialInvestment: tt.initial, CashLimit: tt.limit, CashBuffer: tt.buffer}
			p.ClampCashBuffer()
			assert.Equal(t, tt.expected, p.CashBuffer)
		})
	}
}

func TestPortfolio_IsDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&Portfolio{}).IsDue(now), "nil next run is due")
	assert.True(t, (&Portfolio{NextRebalanceAt: &past}).IsDue(now))
	assert.True(t, (&Portfolio{NextRebalanceAt: &now}).IsDue(now), "equal is due")
	assert.False(t, (&Portfolio{NextRebalanceAt: &future}).IsDue(now))
}

func TestPortfolio_HoldingLookup(t *testing.T) {
	p := &Portfolio{Holdings: []Holding{
		{Symbol: "AAPL", Quantity: 10, CurrentPrice: 100},
		{Symbol: "MSFT", Quantity: 2, CurrentPrice: 50},
	}}

	h, ok := p.Holding("aapl")
	assert.True(t, ok)
	assert.Equal(t, 10.0, h.Quantity)

	_, ok = p.Holding("TSLA")
	assert.False(t, ok)

	assert.Equal(t, 1100.0, p.HoldingsValue())
}

func TestReplayCursor_Bootstrapping(t *testing.T) {
	anchor := time.Now()

	assert.True(t, (&ReplayCursor{}).Bootstrapping())
	assert.False(t, (&ReplayCursor{LastTradeMatchTime: &anchor}).Bootstrapping())
	assert.False(t, (&ReplayCursor{LastTradeID: "t-1"}).Bootstrapping())
}

func TestParseTradeSide(t *testing.T) {
	assert.Equal(t, SideBuy, ParseTradeSide(" buy "))
	assert.Equal(t, SideSell, ParseTradeSide("SELL"))
	assert.Equal(t, TradeSide("HOLD"), ParseTradeSide("hold"))
}

func TestCredentials(t *testing.T) {
	assert.True(t, BrokerCredentials{KeyID: "k", SecretKey: "s"}.Valid())
	assert.False(t, BrokerCredentials{KeyID: "k"}.Valid())

	assert.True(t, VenueCredentials{Address: "0x1", APIKey: "k", Secret: "c2VjcmV0", Passphrase: "p"}.Complete())
	assert.False(t, VenueCredentials{Address: "0x1"}.Complete())
}

func TestProvider_Valid(t *testing.T) {
	assert.True(t, ProviderBroker.Valid())
	assert.True(t, ProviderCopyTrade.Valid())
	assert.False(t, Provider("ibkr").Valid())
}

func TestVenueCredentials_JSONHidesKeys(t *testing.T) {
	cursor := ReplayCursor{
		CounterpartyAddress: "0xabc",
		Credentials:         VenueCredentials{Address: "0xme", APIKey: "key-123", Secret: "c2VjcmV0", Passphrase: "pass-456"},
	}

	data, err := json.Marshal(cursor)
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, "0xabc")
	assert.NotContains(t, body, "key-123")
	assert.NotContains(t, body, "c2VjcmV0")
	assert.NotContains(t, body, "pass-456")
}
