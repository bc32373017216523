package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers handles process monitoring and the manual sweep trigger
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	sweeper     Sweeper
	db          Pinger
	hostStats   func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(sweeper Sweeper, db Pinger, log zerolog.Logger) *SystemHandlers {
	h := &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		sweeper:     sweeper,
		db:          db,
	}
	h.hostStats = h.getSystemStats
	return h
}

// SystemStatsResponse is the body of GET /api/system/stats
type SystemStatsResponse struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	Goroutines     int     `json:"goroutines"`
	HeapAllocMB    float64 `json:"heap_alloc_mb"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
	SweepRunning   bool    `json:"sweep_running"`
	DatabaseStatus string  `json:"database_status"`
}

// HandleSystemStats returns host and process statistics
func (h *SystemHandlers) HandleSystemStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system stats")

	cpuPercent, memPercent := h.hostStats()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := SystemStatsResponse{
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocMB:    float64(memStats.HeapAlloc) / 1024 / 1024,
		UptimeSeconds:  int64(time.Since(h.startupTime).Seconds()),
		DatabaseStatus: "ok",
	}
	if h.sweeper != nil {
		response.SweepRunning = h.sweeper.Running()
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.QuickCheck(ctx); err != nil {
			response.DatabaseStatus = err.Error()
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleTriggerSweep runs one due-check sweep immediately
// POST /api/sweep
func (h *SystemHandlers) HandleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	h.log.Info().Msg("Manual sweep triggered")

	result, ran := h.sweeper.Sweep(r.Context())
	if !ran {
		h.writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "busy",
			"message": "A sweep is already in progress",
		})
		return
	}
	if result.Err != nil {
		h.log.Error().Err(result.Err).Msg("Manual sweep failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": result.Err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// getSystemStats calculates CPU and RAM usage percentages
// over a short 100ms sample so the endpoint stays responsive
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
