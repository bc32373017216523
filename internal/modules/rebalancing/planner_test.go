package rebalancing

import (
	"testing"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adjustmentFor(t *testing.T, adjustments []domain.Adjustment, symbol string) domain.Adjustment {
	t.Helper()
	for _, a := range adjustments {
		if a.Symbol == symbol {
			return a
		}
	}
	t.Fatalf("no adjustment for %s", symbol)
	return domain.Adjustment{}
}

func TestPlanAdjustments_BuysFromCash(t *testing.T) {
	weights := []domain.WeightedTarget{{Symbol: "AAPL", Weight: 0.6}, {Symbol: "MSFT", Weight: 0.4}}
	prices := map[string]float64{"AAPL": 100, "MSFT": 50}

	adjustments := PlanAdjustments(weights, 1000, nil, prices)
	require.Len(t, adjustments, 2)

	aapl := adjustmentFor(t, adjustments, "AAPL")
	assert.Equal(t, 6.0, aapl.DesiredQty)
	assert.Equal(t, 600.0, aapl.DesiredValue)
	assert.Equal(t, ActionBuy, Classify(aapl))

	msft := adjustmentFor(t, adjustments, "MSFT")
	assert.Equal(t, 8.0, msft.DesiredQty)
	assert.Equal(t, 400.0, msft.DesiredValue)
	assert.Equal(t, ActionBuy, Classify(msft))
}

func TestPlanAdjustments_LiquidatesUntargetedHoldings(t *testing.T) {
	weights := []domain.WeightedTarget{{Symbol: "MSFT", Weight: 1}}
	positions := []domain.BrokerPosition{{Symbol: "AAPL", Quantity: 10, CurrentPrice: 100}}
	prices := map[string]float64{"AAPL": 100, "MSFT": 50}

	adjustments := PlanAdjustments(weights, 1000, positions, prices)
	require.Len(t, adjustments, 2)
	assert.Equal(t, "MSFT", adjustments[0].Symbol, "targets come before liquidations")

	aapl := adjustmentFor(t, adjustments, "AAPL")
	assert.Equal(t, 0.0, aapl.DesiredQty)
	assert.Equal(t, 10.0, aapl.CurrentQty)
	assert.Equal(t, 1000.0, aapl.CurrentValue)
	assert.Equal(t, -10.0, aapl.QtyDiff())
	assert.Equal(t, ActionSell, Classify(aapl))
}

func TestPlanAdjustments_UnpricedSymbolIsUnbuyable(t *testing.T) {
	weights := []domain.WeightedTarget{{Symbol: "AAPL", Weight: 0.5}, {Symbol: "XYZ", Weight: 0.5}}

	adjustments := PlanAdjustments(weights, 1000, nil, map[string]float64{"AAPL": 100})

	xyz := adjustmentFor(t, adjustments, "XYZ")
	assert.Equal(t, 0.0, xyz.DesiredQty)
	assert.Equal(t, 0.0, xyz.CurrentPrice)
	assert.Equal(t, ActionHold, Classify(xyz))
}

func TestPlanAdjustments_FallsBackToPositionPrice(t *testing.T) {
	weights := []domain.WeightedTarget{{Symbol: "AAPL", Weight: 1}}
	positions := []domain.BrokerPosition{{Symbol: "aapl", Quantity: 2, CurrentPrice: 200}}

	adjustments := PlanAdjustments(weights, 1000, positions, nil)

	aapl := adjustmentFor(t, adjustments, "AAPL")
	assert.Equal(t, 200.0, aapl.CurrentPrice)
	assert.Equal(t, 5.0, aapl.DesiredQty)
	assert.Equal(t, 2.0, aapl.CurrentQty)
}

func TestPlanAdjustments_IsDeterministic(t *testing.T) {
	weights := []domain.WeightedTarget{{Symbol: "AAPL", Weight: 0.3}, {Symbol: "MSFT", Weight: 0.7}}
	positions := []domain.BrokerPosition{
		{Symbol: "TSLA", Quantity: 3, CurrentPrice: 250},
		{Symbol: "AAPL", Quantity: 1, CurrentPrice: 100},
		{Symbol: "NVDA", Quantity: 4, CurrentPrice: 90},
	}
	prices := map[string]float64{"AAPL": 101, "MSFT": 49.5}

	first := PlanAdjustments(weights, 2500, positions, prices)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, PlanAdjustments(weights, 2500, positions, prices))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		desired  float64
		expected Action
	}{
		{"equal", 5, 5, ActionHold},
		{"noise above", 5, 5.009, ActionHold},
		{"noise below", 5.005, 5, ActionHold},
		{"buy", 5, 6, ActionBuy},
		{"sell", 5, 4, ActionSell},
		{"fractional sell", 5.5, 5, ActionSell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(domain.Adjustment{CurrentQty: tt.current, DesiredQty: tt.desired}))
		})
	}
}
