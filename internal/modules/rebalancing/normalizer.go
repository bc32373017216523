package rebalancing

import (
	"math"
	"strings"

	"github.com/aristath/autopilot/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// sizing picks one raw field of a target entry
type sizing func(domain.TargetPosition) float64

// Priority order for deriving weights from heterogeneous targets
var sizingPriority = []sizing{
	func(t domain.TargetPosition) float64 { return t.TargetWeight },
	func(t domain.TargetPosition) float64 { return t.TargetValue },
	func(t domain.TargetPosition) float64 { return t.TargetQuantity },
}

// NormalizeTargets converts raw strategy targets into weights that sum to 1.
//
// The first sizing field (weight, then value, then quantity) with at least one
// positive entry decides the vector; entries that are not positive in that
// field get weight 0. With no positive field anywhere every symbol gets an
// equal share. Entries without a symbol are dropped and duplicate symbols are
// merged by summing their fields.
//
// The result is empty when no entry has a symbol. Callers must treat that as fatal.
func NormalizeTargets(raw []domain.TargetPosition) []domain.WeightedTarget {
	targets := mergeBySymbol(raw)
	if len(targets) == 0 {
		return nil
	}

	for _, field := range sizingPriority {
		vector := make([]float64, len(targets))
		for i, t := range targets {
			if v := field(t); isPositive(v) {
				vector[i] = v
			}
		}

		sum := floats.Sum(vector)
		if sum <= 0 || math.IsInf(sum, 0) {
			continue
		}
		floats.Scale(1/sum, vector)
		return toWeighted(targets, vector)
	}

	vector := make([]float64, len(targets))
	floats.AddConst(1/float64(len(targets)), vector)
	return toWeighted(targets, vector)
}

func mergeBySymbol(raw []domain.TargetPosition) []domain.TargetPosition {
	merged := make([]domain.TargetPosition, 0, len(raw))
	index := make(map[string]int, len(raw))

	for _, t := range raw {
		symbol := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if symbol == "" {
			continue
		}
		i, seen := index[symbol]
		if !seen {
			index[symbol] = len(merged)
			merged = append(merged, domain.TargetPosition{Symbol: symbol})
			i = len(merged) - 1
		}
		merged[i].TargetWeight += finiteOrZero(t.TargetWeight)
		merged[i].TargetValue += finiteOrZero(t.TargetValue)
		merged[i].TargetQuantity += finiteOrZero(t.TargetQuantity)
	}
	return merged
}

func toWeighted(targets []domain.TargetPosition, vector []float64) []domain.WeightedTarget {
	out := make([]domain.WeightedTarget, len(targets))
	for i, t := range targets {
		out[i] = domain.WeightedTarget{Symbol: t.Symbol, Weight: vector[i]}
	}
	return out
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
