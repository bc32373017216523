package rebalancing

import (
	"math"
	"strings"

	"github.com/aristath/autopilot/internal/domain"
)

// ShareTolerance suppresses trades caused by floating-point noise.
// It is a tunable, not a derived constant.
const ShareTolerance = 0.01

// Action is what an adjustment asks the executor to do
type Action string

const (
	ActionHold Action = "hold"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Classify compares desired with current quantity within ShareTolerance
func Classify(adj domain.Adjustment) Action {
	diff := adj.QtyDiff()
	switch {
	case math.Abs(diff) < ShareTolerance:
		return ActionHold
	case diff > 0:
		return ActionBuy
	default:
		return ActionSell
	}
}

// PlanAdjustments diffs live positions against the weight vector under budget.
//
// Targets come first in weight order, followed by held symbols that are not
// targeted; those are planned for full liquidation. A symbol without a
// positive price gets a desired quantity of 0 when targeted.
// The result is a pure function of its inputs.
func PlanAdjustments(
	weights []domain.WeightedTarget,
	budget float64,
	positions []domain.BrokerPosition,
	prices map[string]float64,
) []domain.Adjustment {
	if budget < 0 || math.IsNaN(budget) {
		budget = 0
	}

	held := make(map[string]domain.BrokerPosition, len(positions))
	for _, p := range positions {
		held[strings.ToUpper(p.Symbol)] = p
	}

	priceOf := func(symbol string) float64 {
		if price, ok := prices[symbol]; ok && price > 0 {
			return price
		}
		if p, ok := held[symbol]; ok && p.CurrentPrice > 0 {
			return p.CurrentPrice
		}
		return 0
	}

	adjustments := make([]domain.Adjustment, 0, len(weights)+len(positions))
	targeted := make(map[string]bool, len(weights))

	for _, w := range weights {
		symbol := strings.ToUpper(w.Symbol)
		if targeted[symbol] {
			continue
		}
		targeted[symbol] = true

		price := priceOf(symbol)
		currentQty := held[symbol].Quantity
		desiredValue := w.Weight * budget

		desiredQty := 0.0
		if price > 0 {
			desiredQty = math.Floor(desiredValue / price)
		}

		adjustments = append(adjustments, domain.Adjustment{
			Symbol:       symbol,
			CurrentQty:   currentQty,
			DesiredQty:   desiredQty,
			CurrentPrice: price,
			CurrentValue: currentQty * price,
			DesiredValue: desiredValue,
			TargetWeight: w.Weight,
		})
	}

	for _, p := range positions {
		symbol := strings.ToUpper(p.Symbol)
		if targeted[symbol] || p.Quantity <= 0 {
			continue
		}
		targeted[symbol] = true

		price := priceOf(symbol)
		adjustments = append(adjustments, domain.Adjustment{
			Symbol:       symbol,
			CurrentQty:   p.Quantity,
			DesiredQty:   0,
			CurrentPrice: price,
			CurrentValue: p.Quantity * price,
		})
	}

	return adjustments
}
