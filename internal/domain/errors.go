package domain

import "errors"

var (
	// ErrConfiguration means credentials are missing or invalid; aborts one cycle
	ErrConfiguration = errors.New("configuration error")
	// ErrVenueUnavailable means a clock/positions/account (or feed) fetch failed
	ErrVenueUnavailable = errors.New("venue unavailable")
	// ErrOrderRejected means the broker refused a single order
	ErrOrderRejected = errors.New("order rejected")
	// ErrStalePortfolio means the document changed or was deleted mid-cycle
	ErrStalePortfolio = errors.New("stale portfolio document")
	// ErrInvalidTargets means the normalizer produced no weights
	ErrInvalidTargets = errors.New("invalid targets")
	// ErrPortfolioNotFound means no portfolio exists with the given id
	ErrPortfolioNotFound = errors.New("portfolio not found")
)
