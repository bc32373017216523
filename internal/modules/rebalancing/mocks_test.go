package rebalancing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aristath/autopilot/internal/domain"
)

// mockBroker records placed orders and serves canned account state
type mockBroker struct {
	mu sync.Mutex

	clock     *domain.BrokerClock
	clockErr  error
	positions []domain.BrokerPosition
	posErr    error
	account   *domain.BrokerAccount
	acctErr   error
	prices    map[string]float64
	priceErr  map[string]error
	rejectFor map[string]bool

	orders      []domain.OrderRequest
	priceCalls  []string
	orderSerial int
}

func newMockBroker() *mockBroker {
	return &mockBroker{
		clock:     &domain.BrokerClock{IsOpen: true},
		account:   &domain.BrokerAccount{},
		prices:    map[string]float64{},
		priceErr:  map[string]error{},
		rejectFor: map[string]bool{},
	}
}

func (m *mockBroker) Clock(ctx context.Context) (*domain.BrokerClock, error) {
	if m.clockErr != nil {
		return nil, m.clockErr
	}
	return m.clock, nil
}

func (m *mockBroker) Positions(ctx context.Context) ([]domain.BrokerPosition, error) {
	if m.posErr != nil {
		return nil, m.posErr
	}
	return m.positions, nil
}

func (m *mockBroker) Account(ctx context.Context) (*domain.BrokerAccount, error) {
	if m.acctErr != nil {
		return nil, m.acctErr
	}
	return m.account, nil
}

func (m *mockBroker) PlaceOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, order)
	if m.rejectFor[order.Symbol] {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderRejected, order.Symbol)
	}
	m.orderSerial++
	return &domain.OrderResult{
		OrderID:  fmt.Sprintf("ord-%d", m.orderSerial),
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: order.Quantity,
		Status:   "accepted",
	}, nil
}

func (m *mockBroker) LatestTradePrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceCalls = append(m.priceCalls, symbol)
	if err := m.priceErr[symbol]; err != nil {
		return 0, err
	}
	if price, ok := m.prices[symbol]; ok {
		return price, nil
	}
	return 0, errors.New("no trades")
}

func (m *mockBroker) placed() []domain.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OrderRequest, len(m.orders))
	copy(out, m.orders)
	return out
}

type mockFactory struct {
	broker *mockBroker
	seen   []domain.BrokerCredentials
}

func (f *mockFactory) ForCredentials(creds domain.BrokerCredentials) domain.BrokerClient {
	f.seen = append(f.seen, creds)
	return f.broker
}

type mockCredentials struct {
	creds domain.BrokerCredentials
	err   error
}

func (m *mockCredentials) BrokerCredentials(ctx context.Context, ownerID string) (domain.BrokerCredentials, error) {
	return m.creds, m.err
}

type mockEvaluator struct {
	targets []domain.TargetPosition
	err     error
}

func (m *mockEvaluator) Evaluate(ctx context.Context, p *domain.Portfolio) ([]domain.TargetPosition, error) {
	return m.targets, m.err
}

type mockSaver struct {
	mu    sync.Mutex
	saved []domain.Portfolio
	err   error
}

func (m *mockSaver) Save(ctx context.Context, p *domain.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, *p)
	return nil
}

type mockAudit struct {
	mu      sync.Mutex
	entries []domain.StrategyLogEntry
}

func (m *mockAudit) RecordLog(ctx context.Context, entry domain.StrategyLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func (m *mockAudit) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Level+": "+e.Message)
	}
	return out
}

func ordersBySide(orders []domain.OrderRequest, side domain.OrderSide) map[string]float64 {
	out := map[string]float64{}
	for _, o := range orders {
		if o.Side == side {
			out[strings.ToUpper(o.Symbol)] += o.Quantity
		}
	}
	return out
}
