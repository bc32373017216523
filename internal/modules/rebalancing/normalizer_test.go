package rebalancing

import (
	"math"
	"reflect"
	"testing"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightsOf(targets []domain.WeightedTarget) map[string]float64 {
	out := make(map[string]float64, len(targets))
	for _, t := range targets {
		out[t.Symbol] = t.Weight
	}
	return out
}

func TestNormalizeTargets(t *testing.T) {
	tests := []struct {
		name     string
		raw      []domain.TargetPosition
		expected map[string]float64
	}{
		{
			name: "explicit weights normalized",
			raw: []domain.TargetPosition{
				{Symbol: "AAPL", TargetWeight: 3},
				{Symbol: "MSFT", TargetWeight: 1},
			},
			expected: map[string]float64{"AAPL": 0.75, "MSFT": 0.25},
		},
		{
			name: "weights win over values and zero the rest",
			raw: []domain.TargetPosition{
				{Symbol: "AAPL", TargetWeight: 0.5, TargetValue: 100},
				{Symbol: "MSFT", TargetValue: 900},
			},
			expected: map[string]float64{"AAPL": 1, "MSFT": 0},
		},
		{
			name: "values when no weights",
			raw: []domain.TargetPosition{
				{Symbol: "AAPL", TargetValue: 600},
				{Symbol: "MSFT", TargetValue: 400},
			},
			expected: map[string]float64{"AAPL": 0.6, "MSFT": 0.4},
		},
		{
			name: "quantities when no weights or values",
			raw: []domain.TargetPosition{
				{Symbol: "AAPL", TargetQuantity: 1},
				{Symbol: "MSFT", TargetQuantity: 3},
				{Symbol: "TSLA", TargetQuantity: -2},
			},
			expected: map[string]float64{"AAPL": 0.25, "MSFT": 0.75, "TSLA": 0},
		},
		{
			name: "equal weight fallback",
			raw: []domain.TargetPosition{
				{Symbol: "AAPL"},
				{Symbol: "MSFT", TargetWeight: -1},
			},
			expected: map[string]float64{"AAPL": 0.5, "MSFT": 0.5},
		},
		{
			name: "entries without symbol dropped",
			raw: []domain.TargetPosition{
				{Symbol: "  ", TargetWeight: 10},
				{Symbol: "aapl", TargetWeight: 1},
			},
			expected: map[string]float64{"AAPL": 1},
		},
		{
			name: "duplicates merged",
			raw: []domain.TargetPosition{
				{Symbol: "AAPL", TargetWeight: 1},
				{Symbol: "aapl", TargetWeight: 1},
				{Symbol: "MSFT", TargetWeight: 2},
			},
			expected: map[string]float64{"AAPL": 0.5, "MSFT": 0.5},
		},
		{
			name: "non-finite values ignored",
			raw: []domain.TargetPosition{
				{Symbol: "AAPL", TargetWeight: math.NaN(), TargetValue: 50},
				{Symbol: "MSFT", TargetWeight: math.Inf(1), TargetValue: 50},
			},
			expected: map[string]float64{"AAPL": 0.5, "MSFT": 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := weightsOf(NormalizeTargets(tt.raw))
			require.Len(t, got, len(tt.expected))
			for symbol, want := range tt.expected {
				assert.InDelta(t, want, got[symbol], 1e-12, symbol)
			}
		})
	}
}

func TestNormalizeTargets_EmptyWhenNothingResolvable(t *testing.T) {
	assert.Empty(t, NormalizeTargets(nil))
	assert.Empty(t, NormalizeTargets([]domain.TargetPosition{{Symbol: "", TargetWeight: 1}}))
}

func TestNormalizeTargets_KeepsInputOrder(t *testing.T) {
	got := NormalizeTargets([]domain.TargetPosition{
		{Symbol: "MSFT", TargetWeight: 0.4},
		{Symbol: "AAPL", TargetWeight: 0.6},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "MSFT", got[0].Symbol)
	assert.Equal(t, "AAPL", got[1].Symbol)
}

func TestNormalizeTargets_WeightsSumToOne(t *testing.T) {
	properties := gopter.NewProperties(nil)

	symbols := []string{"AAPL", "MSFT", "TSLA", "NVDA", "AMZN", "GOOG"}
	entries := gen.SliceOf(gen.Struct(reflect.TypeOf(domain.TargetPosition{}), map[string]gopter.Gen{
		"Symbol":         gen.IntRange(0, len(symbols)-1).Map(func(i int) string { return symbols[i] }),
		"TargetWeight":   gen.Float64Range(-1, 5),
		"TargetValue":    gen.Float64Range(-100, 10000),
		"TargetQuantity": gen.Float64Range(-10, 500),
	}))

	properties.Property("normalized weights sum to 1", prop.ForAll(
		func(raw []domain.TargetPosition) bool {
			weights := NormalizeTargets(raw)
			if len(raw) == 0 {
				return len(weights) == 0
			}
			sum := 0.0
			for _, w := range weights {
				if w.Weight < 0 {
					return false
				}
				sum += w.Weight
			}
			return math.Abs(sum-1) <= 1e-9
		},
		entries,
	))

	properties.TestingRun(t)
}
