package rebalancing

import (
	"math"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/aristath/autopilot/internal/modules/recurrence"
)

// closedMarketSafetyBuffer keeps a closed-market reschedule from landing in the past
const closedMarketSafetyBuffer = time.Minute

// DeriveBudget returns how much the cycle may deploy:
// min(initialInvestment + cashBuffer capped at cashLimit, positionsValue + accountCash, cashLimit).
// Deposits or withdrawals made outside the engine can shrink, never grow, it past the realizable total.
func DeriveBudget(p *domain.Portfolio, positionsValue, accountCash float64) float64 {
	target := p.InitialInvestment + math.Max(0, p.CashBuffer)
	if p.HasCashLimit() {
		target = math.Min(target, p.CashLimit)
	}

	budget := math.Min(target, positionsValue+accountCash)
	if p.HasCashLimit() {
		budget = math.Min(budget, p.CashLimit)
	}
	if budget < 0 || math.IsNaN(budget) {
		return 0
	}
	return budget
}

// UndeployedBudget is the part of budget left outside positions after a cycle:
// budget - (positionsValue - sellProceeds + spentOnBuys), never negative.
// Spare account cash beyond the budget is not the portfolio's and is ignored.
func UndeployedBudget(budget, positionsValue float64, report *ExecutionReport) float64 {
	deployed := positionsValue - report.SellProceeds + report.SpentOnBuys
	undeployed := budget - math.Max(0, deployed)
	if undeployed < 0 || math.IsNaN(undeployed) {
		return 0
	}
	return undeployed
}

// ClosedMarketReschedule returns the next attempt after a market-closed skip.
//
// With a known reopen time the portfolio runs at the later of that time and
// now plus a one-minute buffer, so a daily portfolio still trades on the next
// session. The cadence term is left out in that case: a daily cadence would
// otherwise push the run a full day past the reopen. Without a reopen time it
// waits for the next cadence slot, again no sooner than the buffer.
func ClosedMarketReschedule(p *domain.Portfolio, now, nextOpen time.Time) time.Time {
	earliest := now.Add(closedMarketSafetyBuffer)
	if !nextOpen.IsZero() {
		return recurrence.Latest(nextOpen.UTC(), earliest)
	}
	return recurrence.Latest(recurrence.NextDueTime(p.Cadence, now), earliest)
}
