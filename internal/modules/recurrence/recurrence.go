// Package recurrence computes when a portfolio is next due for reconciliation.
package recurrence

import (
	"time"

	"github.com/aristath/autopilot/internal/domain"
)

// Cadences lists every supported cadence in ascending interval order
var Cadences = []domain.Cadence{
	domain.CadenceEveryMinute,
	domain.CadenceEvery5Minutes,
	domain.CadenceEvery15Minutes,
	domain.CadenceHourly,
	domain.CadenceDaily,
	domain.CadenceWeekly,
	domain.CadenceMonthly,
}

// IsKnown reports whether cadence is one of the supported values
func IsKnown(cadence domain.Cadence) bool {
	for _, c := range Cadences {
		if c == cadence {
			return true
		}
	}
	return false
}

// NextDueTime returns the next due timestamp after from.
// Unknown cadences fall back to daily. Monthly uses calendar-month
// increments with time.AddDate normalization (Jan 31 + 1 month = Mar 3/2).
func NextDueTime(cadence domain.Cadence, from time.Time) time.Time {
	switch cadence {
	case domain.CadenceEveryMinute:
		return from.Add(time.Minute)
	case domain.CadenceEvery5Minutes:
		return from.Add(5 * time.Minute)
	case domain.CadenceEvery15Minutes:
		return from.Add(15 * time.Minute)
	case domain.CadenceHourly:
		return from.Add(time.Hour)
	case domain.CadenceWeekly:
		return from.AddDate(0, 0, 7)
	case domain.CadenceMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 1)
	}
}

// Latest returns the latest of the given times
func Latest(first time.Time, rest ...time.Time) time.Time {
	latest := first
	for _, t := range rest {
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}
