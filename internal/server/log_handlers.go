package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// LogHandlers serves the per-strategy audit trail
type LogHandlers struct {
	source LogSource
	log    zerolog.Logger
}

// NewLogHandlers creates a new log handlers instance
func NewLogHandlers(source LogSource, log zerolog.Logger) *LogHandlers {
	return &LogHandlers{
		source: source,
		log:    log.With().Str("component", "log_handlers").Logger(),
	}
}

// HandleStrategyLogs returns the newest audit entries of a strategy
// GET /api/strategies/{id}/logs?limit=
func (h *LogHandlers) HandleStrategyLogs(w http.ResponseWriter, r *http.Request) {
	strategyID := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := h.source.ListByStrategy(r.Context(), strategyID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("strategy_id", strategyID).Msg("Failed to read strategy logs")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"strategy_id": strategyID,
		"entries":     entries,
		"total":       len(entries),
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
