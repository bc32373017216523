// Package scheduler drives reconciliation: a single-flight due-check sweep
// fired by a cron trigger.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/rs/zerolog"
)

// ErrSweepInProgress means another sweep or manual run holds the guard
var ErrSweepInProgress = errors.New("sweep already in progress")

// Reconciler runs one cycle for a portfolio of its provider
type Reconciler interface {
	Reconcile(ctx context.Context, p *domain.Portfolio) error
}

// PortfolioFinder loads portfolios for reconciliation
type PortfolioFinder interface {
	FindDue(ctx context.Context, now time.Time) ([]*domain.Portfolio, error)
	Get(ctx context.Context, id string) (*domain.Portfolio, error)
}

// SweepResult summarizes one sweep
type SweepResult struct {
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Due        int               `json:"due"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Errors     map[string]string `json:"errors,omitempty"` // portfolio id -> error
	Err        error             `json:"-"`
}

// Sweeper reconciles due portfolios one at a time.
// At most one sweep (or manual run) is in flight; an overlapping call is a no-op.
type Sweeper struct {
	finder      PortfolioFinder
	reconcilers map[domain.Provider]Reconciler
	audit       domain.StrategyLogger
	running     atomic.Bool
	now         func() time.Time
	log         zerolog.Logger
}

// NewSweeper creates a new sweeper dispatching by provider
func NewSweeper(
	finder PortfolioFinder,
	reconcilers map[domain.Provider]Reconciler,
	audit domain.StrategyLogger,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		finder:      finder,
		reconcilers: reconcilers,
		audit:       audit,
		now:         time.Now,
		log:         log.With().Str("component", "sweeper").Logger(),
	}
}

// Running reports whether a sweep is in flight
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// Sweep reconciles every due portfolio sequentially. The bool is false when
// another sweep held the guard and nothing ran. One portfolio's failure is
// logged and does not stop the rest.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug().Msg("Sweep already running, skipping tick")
		return SweepResult{}, false
	}
	defer s.running.Store(false)

	result := SweepResult{StartedAt: s.now().UTC()}

	due, err := s.finder.FindDue(ctx, result.StartedAt)
	if err != nil {
		result.Err = fmt.Errorf("failed to find due portfolios: %w", err)
		result.FinishedAt = s.now().UTC()
		s.log.Error().Err(err).Msg("Failed to find due portfolios")
		return result, true
	}
	result.Due = len(due)

	for _, p := range due {
		if err := s.reconcile(ctx, p); err != nil {
			result.Failed++
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[p.ID] = err.Error()
			continue
		}
		result.Succeeded++
	}

	result.FinishedAt = s.now().UTC()
	if result.Due > 0 {
		s.log.Info().
			Int("due", result.Due).
			Int("succeeded", result.Succeeded).
			Int("failed", result.Failed).
			Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
			Msg("Sweep completed")
	}
	return result, true
}

// RunOne reconciles a single portfolio now, regardless of its schedule,
// under the same guard as Sweep.
func (s *Sweeper) RunOne(ctx context.Context, id string) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSweepInProgress
	}
	defer s.running.Store(false)

	p, err := s.finder.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.reconcile(ctx, p)
}

// reconcile dispatches p and converts a panic into an error
func (s *Sweeper) reconcile(ctx context.Context, p *domain.Portfolio) (err error) {
	log := s.log.With().
		Str("portfolio_id", p.ID).
		Str("provider", string(p.Provider)).
		Str("strategy_id", p.StrategyID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during reconciliation: %v", r)
			log.Error().Str("stack", string(debug.Stack())).Msg("Reconciliation panicked")
		}
		if err != nil {
			s.reportFailure(ctx, log, p, err)
		}
	}()

	reconciler, ok := s.reconcilers[p.Provider]
	if !ok {
		return fmt.Errorf("%w: no reconciler for provider %q", domain.ErrConfiguration, p.Provider)
	}

	start := s.now()
	if err := reconciler.Reconcile(ctx, p); err != nil {
		return err
	}
	log.Debug().Dur("duration", s.now().Sub(start)).Msg("Portfolio reconciled")
	return nil
}

func (s *Sweeper) reportFailure(ctx context.Context, log zerolog.Logger, p *domain.Portfolio, err error) {
	kind := "unexpected"
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		kind = "configuration"
	case errors.Is(err, domain.ErrVenueUnavailable):
		kind = "venue_unavailable"
	case errors.Is(err, domain.ErrInvalidTargets):
		kind = "invalid_targets"
	}

	log.Error().Err(err).Str("kind", kind).Msg("Reconciliation failed, cycle skipped")

	if s.audit == nil {
		return
	}
	s.audit.RecordLog(ctx, domain.StrategyLogEntry{
		StrategyID:   p.StrategyID,
		UserID:       p.OwnerID,
		StrategyName: p.StrategyName,
		Level:        domain.LogLevelError,
		Message:      "Reconciliation failed",
		Details: map[string]interface{}{
			"portfolio_id": p.ID,
			"provider":     string(p.Provider),
			"kind":         kind,
			"error":        err.Error(),
		},
	})
}

// SweepJob adapts a Sweeper to the trigger
type SweepJob struct {
	sweeper *Sweeper
}

// NewSweepJob creates the recurring due-check job
func NewSweepJob(sweeper *Sweeper) *SweepJob {
	return &SweepJob{sweeper: sweeper}
}

// Name returns the job name
func (j *SweepJob) Name() string { return "portfolio_sweep" }

// Run performs one sweep. Per-portfolio failures are already logged.
func (j *SweepJob) Run() error {
	result, _ := j.sweeper.Sweep(context.Background())
	return result.Err
}
