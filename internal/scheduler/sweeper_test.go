package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFinder struct {
	mu      sync.Mutex
	due     []*domain.Portfolio
	dueErr  error
	byID    map[string]*domain.Portfolio
	queried []time.Time
}

func (m *mockFinder) FindDue(ctx context.Context, now time.Time) ([]*domain.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queried = append(m.queried, now)
	return m.due, m.dueErr
}

func (m *mockFinder) Get(ctx context.Context, id string) (*domain.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPortfolioNotFound, id)
}

type mockReconciler struct {
	mu      sync.Mutex
	errFor  map[string]error
	panicOn string
	seen    []string
	block   chan struct{}
	entered chan struct{}
}

func (m *mockReconciler) Reconcile(ctx context.Context, p *domain.Portfolio) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	m.seen = append(m.seen, p.ID)
	m.mu.Unlock()
	if p.ID == m.panicOn {
		panic("nil map write")
	}
	return m.errFor[p.ID]
}

func (m *mockReconciler) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
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

func brokerPortfolio(id string) *domain.Portfolio {
	return &domain.Portfolio{ID: id, OwnerID: "user-1", StrategyID: "s-" + id, Provider: domain.ProviderBroker}
}

func newTestSweeper(finder *mockFinder, reconcilers map[domain.Provider]Reconciler, audit *mockAudit) *Sweeper {
	s := NewSweeper(finder, reconcilers, audit, zerolog.New(nil).Level(zerolog.Disabled))
	fixed := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s
}

func TestSweep_ContinuesAfterFailures(t *testing.T) {
	finder := &mockFinder{due: []*domain.Portfolio{
		brokerPortfolio("a"),
		brokerPortfolio("b"),
		brokerPortfolio("c"),
		{ID: "d", Provider: domain.ProviderCopyTrade},
	}}
	broker := &mockReconciler{
		errFor:  map[string]error{"a": fmt.Errorf("%w: positions", domain.ErrVenueUnavailable)},
		panicOn: "b",
	}
	copyTrade := &mockReconciler{}
	audit := &mockAudit{}
	s := newTestSweeper(finder, map[domain.Provider]Reconciler{
		domain.ProviderBroker:    broker,
		domain.ProviderCopyTrade: copyTrade,
	}, audit)

	result, ran := s.Sweep(context.Background())
	require.True(t, ran)
	require.NoError(t, result.Err)

	assert.Equal(t, 4, result.Due)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	assert.Contains(t, result.Errors["a"], "venue unavailable")
	assert.Contains(t, result.Errors["b"], "panic")

	assert.Equal(t, []string{"a", "b", "c"}, broker.calls())
	assert.Equal(t, []string{"d"}, copyTrade.calls())

	require.Len(t, audit.entries, 2)
	assert.Equal(t, domain.LogLevelError, audit.entries[0].Level)
	assert.Equal(t, "venue_unavailable", audit.entries[0].Details["kind"])
	assert.Equal(t, "s-a", audit.entries[0].StrategyID)
	assert.False(t, s.Running())
}

func TestSweep_QueriesWithCurrentTime(t *testing.T) {
	finder := &mockFinder{}
	s := newTestSweeper(finder, nil, &mockAudit{})

	result, ran := s.Sweep(context.Background())
	require.True(t, ran)
	assert.Zero(t, result.Due)
	require.Len(t, finder.queried, 1)
	assert.True(t, finder.queried[0].Equal(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)))
}

func TestSweep_UnknownProviderIsConfigurationFailure(t *testing.T) {
	finder := &mockFinder{due: []*domain.Portfolio{{ID: "x", Provider: "futures"}}}
	audit := &mockAudit{}
	s := newTestSweeper(finder, map[domain.Provider]Reconciler{}, audit)

	result, _ := s.Sweep(context.Background())
	assert.Equal(t, 1, result.Failed)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "configuration", audit.entries[0].Details["kind"])
}

func TestSweep_FindDueFailure(t *testing.T) {
	finder := &mockFinder{dueErr: errors.New("disk I/O error")}
	s := newTestSweeper(finder, nil, &mockAudit{})

	result, ran := s.Sweep(context.Background())
	assert.True(t, ran)
	assert.Error(t, result.Err)
	assert.False(t, s.Running())
}

func TestSweep_OverlappingCallIsNoOp(t *testing.T) {
	broker := &mockReconciler{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	finder := &mockFinder{
		due:  []*domain.Portfolio{brokerPortfolio("a")},
		byID: map[string]*domain.Portfolio{"a": brokerPortfolio("a")},
	}
	s := newTestSweeper(finder, map[domain.Provider]Reconciler{domain.ProviderBroker: broker}, &mockAudit{})

	done := make(chan SweepResult)
	go func() {
		result, _ := s.Sweep(context.Background())
		done <- result
	}()
	<-broker.entered

	second, ran := s.Sweep(context.Background())
	assert.False(t, ran)
	assert.Zero(t, second.Due)
	assert.ErrorIs(t, s.RunOne(context.Background(), "a"), ErrSweepInProgress)

	close(broker.block)
	first := <-done
	assert.Equal(t, 1, first.Succeeded)
	assert.Equal(t, []string{"a"}, broker.calls())

	// guard released
	_, ran = s.Sweep(context.Background())
	assert.True(t, ran)
}

func TestRunOne(t *testing.T) {
	broker := &mockReconciler{errFor: map[string]error{"b": fmt.Errorf("%w: no keys", domain.ErrConfiguration)}}
	finder := &mockFinder{byID: map[string]*domain.Portfolio{
		"a": brokerPortfolio("a"),
		"b": brokerPortfolio("b"),
	}}
	s := newTestSweeper(finder, map[domain.Provider]Reconciler{domain.ProviderBroker: broker}, &mockAudit{})
	ctx := context.Background()

	require.NoError(t, s.RunOne(ctx, "a"))
	assert.ErrorIs(t, s.RunOne(ctx, "b"), domain.ErrConfiguration)
	assert.ErrorIs(t, s.RunOne(ctx, "missing"), domain.ErrPortfolioNotFound)
	assert.Equal(t, []string{"a", "b"}, broker.calls())
}

func TestSweepJob(t *testing.T) {
	broker := &mockReconciler{}
	finder := &mockFinder{due: []*domain.Portfolio{brokerPortfolio("a")}}
	job := NewSweepJob(newTestSweeper(finder, map[domain.Provider]Reconciler{domain.ProviderBroker: broker}, &mockAudit{}))

	assert.Equal(t, "portfolio_sweep", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, []string{"a"}, broker.calls())

	finder.dueErr = errors.New("locked")
	assert.Error(t, job.Run())
}
