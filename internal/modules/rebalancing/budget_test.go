package rebalancing

import (
	"testing"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDeriveBudget(t *testing.T) {
	tests := []struct {
		name           string
		initial        float64
		buffer         float64
		limit          float64
		positionsValue float64
		cash           float64
		expected       float64
	}{
		{"initial plus buffer", 1000, 200, 0, 5000, 0, 1200},
		{"capped by limit", 1000, 800, 1500, 5000, 0, 1500},
		{"capped by realizable value", 1000, 0, 0, 300, 400, 700},
		{"withdrawal shrinks budget", 1000, 100, 2000, 0, 50, 50},
		{"limit below initial", 1000, 0, 800, 5000, 5000, 800},
		{"negative buffer ignored", 1000, -300, 0, 5000, 0, 1000},
		{"negative account never negative budget", 1000, 0, 0, 0, -20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &domain.Portfolio{InitialInvestment: tt.initial, CashBuffer: tt.buffer, CashLimit: tt.limit}
			assert.Equal(t, tt.expected, DeriveBudget(p, tt.positionsValue, tt.cash))
		})
	}
}

func TestClosedMarketReschedule_UsesNextOpen(t *testing.T) {
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	nextOpen := time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)
	p := &domain.Portfolio{Cadence: domain.CadenceDaily}

	assert.Equal(t, nextOpen, ClosedMarketReschedule(p, now, nextOpen))
}

func TestClosedMarketReschedule_SafetyBuffer(t *testing.T) {
	now := time.Date(2026, 3, 11, 14, 29, 50, 0, time.UTC)
	nextOpen := time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)
	p := &domain.Portfolio{Cadence: domain.CadenceEveryMinute}

	assert.Equal(t, now.Add(time.Minute), ClosedMarketReschedule(p, now, nextOpen))
}

func TestClosedMarketReschedule_UnknownOpenUsesCadence(t *testing.T) {
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

	hourly := &domain.Portfolio{Cadence: domain.CadenceHourly}
	assert.Equal(t, now.Add(time.Hour), ClosedMarketReschedule(hourly, now, time.Time{}))

	minutely := &domain.Portfolio{Cadence: domain.CadenceEveryMinute}
	assert.Equal(t, now.Add(time.Minute), ClosedMarketReschedule(minutely, now, time.Time{}))
}

func TestClosedMarketReschedule_AlwaysAfterNow(t *testing.T) {
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	stale := now.Add(-6 * time.Hour)

	for _, cadence := range []domain.Cadence{domain.CadenceEveryMinute, domain.CadenceDaily, "bogus"} {
		p := &domain.Portfolio{Cadence: cadence}
		assert.True(t, ClosedMarketReschedule(p, now, stale).After(now), cadence)
		assert.True(t, ClosedMarketReschedule(p, now, time.Time{}).After(now), cadence)
	}
}

func TestUndeployedBudget(t *testing.T) {
	tests := []struct {
		name           string
		budget         float64
		positionsValue float64
		report         ExecutionReport
		expected       float64
	}{
		{"converged with spare cash", 1000, 1000, ExecutionReport{AvailableCash: 1000}, 0},
		{"fresh portfolio fully bought", 1000, 0, ExecutionReport{AvailableCash: 1000, SpentOnBuys: 1000}, 0},
		{"failed buy leaves buffer", 1000, 0, ExecutionReport{AvailableCash: 1000, SpentOnBuys: 500}, 500},
		{"rotation sells then buys", 1000, 1000, ExecutionReport{SellProceeds: 1000, SpentOnBuys: 900}, 100},
		{"positions above budget", 1000, 1200, ExecutionReport{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := tt.report
			assert.InDelta(t, tt.expected, UndeployedBudget(tt.budget, tt.positionsValue, &report), 1e-9)
		})
	}
}
