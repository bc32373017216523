package strategy

import (
	"context"
	"errors"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/rs/zerolog"
)

// Source loads strategies by id
type Source interface {
	Get(ctx context.Context, id string) (*domain.Strategy, error)
}

// Evaluator turns a portfolio's strategy into raw targets.
//
// Target generation itself is external; this evaluator reads the latest
// structured decisions recorded on the strategy and falls back to the
// targets already on the portfolio when the strategy has none or is gone.
type Evaluator struct {
	source Source
	log    zerolog.Logger
}

// NewEvaluator creates a new strategy evaluator
func NewEvaluator(source Source, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		source: source,
		log:    log.With().Str("component", "strategy_evaluator").Logger(),
	}
}

// Evaluate returns the raw targets for p
func (e *Evaluator) Evaluate(ctx context.Context, p *domain.Portfolio) ([]domain.TargetPosition, error) {
	if p.StrategyID == "" {
		return p.TargetPositions, nil
	}

	s, err := e.source.Get(ctx, p.StrategyID)
	if errors.Is(err, ErrStrategyNotFound) {
		e.log.Warn().
			Str("portfolio_id", p.ID).
			Str("strategy_id", p.StrategyID).
			Msg("Strategy not found, using portfolio targets")
		return p.TargetPositions, nil
	}
	if err != nil {
		return nil, err
	}

	if len(s.Decisions) == 0 {
		return p.TargetPositions, nil
	}
	if p.StrategyName == "" {
		p.StrategyName = s.Name
	}
	return s.Decisions, nil
}
