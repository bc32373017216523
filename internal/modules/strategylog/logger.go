package strategylog

import (
	"context"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/rs/zerolog"
)

// Store persists audit entries
type Store interface {
	Insert(ctx context.Context, entry *domain.StrategyLogEntry) error
}

// Logger is the fire-and-forget audit sink used by the reconciliation engines.
// Store failures are logged and never returned.
type Logger struct {
	store Store
	log   zerolog.Logger
}

// NewLogger creates a new audit logger
func NewLogger(store Store, log zerolog.Logger) *Logger {
	return &Logger{
		store: store,
		log:   log.With().Str("component", "strategy_logger").Logger(),
	}
}

// RecordLog stores entry, swallowing any failure
func (l *Logger) RecordLog(ctx context.Context, entry domain.StrategyLogEntry) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Str("strategy_id", entry.StrategyID).Msg("Audit log panicked")
		}
	}()

	if entry.Level == "" {
		entry.Level = domain.LogLevelInfo
	}
	// The audit trail is written even when the cycle's context was cancelled
	if err := l.store.Insert(context.WithoutCancel(ctx), &entry); err != nil {
		l.log.Error().
			Err(err).
			Str("strategy_id", entry.StrategyID).
			Str("message", entry.Message).
			Msg("Failed to record strategy log")
	}
}

var _ domain.StrategyLogger = (*Logger)(nil)
