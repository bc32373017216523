// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/autopilot/internal/domain"
	"github.com/aristath/autopilot/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Store is the portfolio persistence used by the handlers
type Store interface {
	Create(ctx context.Context, p *domain.Portfolio) error
	Get(ctx context.Context, id string) (*domain.Portfolio, error)
	List(ctx context.Context, ownerID string) ([]*domain.Portfolio, error)
	Delete(ctx context.Context, id string) error
}

// Runner reconciles one portfolio on demand
type Runner interface {
	RunOne(ctx context.Context, id string) error
}

// Handler handles portfolio HTTP requests
type Handler struct {
	store  Store
	runner Runner
	log    zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(store Store, runner Runner, log zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		runner: runner,
		log:    log.With().Str("handler", "portfolio").Logger(),
	}
}

// CreateRequest is the body of POST /portfolios
type CreateRequest struct {
	OwnerID           string                  `json:"owner_id"`
	StrategyID        string                  `json:"strategy_id"`
	StrategyName      string                  `json:"strategy_name"`
	Provider          domain.Provider         `json:"provider"`
	Cadence           domain.Cadence          `json:"cadence"`
	InitialInvestment float64                 `json:"initial_investment"`
	CashLimit         float64                 `json:"cash_limit"`
	CashBuffer        float64                 `json:"cash_buffer"`
	TargetPositions   []domain.TargetPosition `json:"target_positions"`
	NextRebalanceAt   *time.Time              `json:"next_rebalance_at,omitempty"`
	CopyTrade         *CopyTradeRequest       `json:"copy_trade,omitempty"`
}

// CopyTradeRequest carries the replay settings of a copy-trade portfolio
type CopyTradeRequest struct {
	CounterpartyAddress string `json:"counterparty_address"`
	Address             string `json:"address"`
	APIKey              string `json:"api_key"`
	Secret              string `json:"secret"`
	Passphrase          string `json:"passphrase"`
}

func (req CreateRequest) toPortfolio() (*domain.Portfolio, error) {
	if !req.Provider.Valid() {
		return nil, errors.New("provider must be broker or copytrade")
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, errors.New("owner_id is required")
	}
	if req.Cadence == "" {
		req.Cadence = domain.CadenceDaily
	}
	if req.InitialInvestment < 0 || req.CashLimit < 0 || req.CashBuffer < 0 {
		return nil, errors.New("amounts must not be negative")
	}

	p := &domain.Portfolio{
		OwnerID:           req.OwnerID,
		StrategyID:        req.StrategyID,
		StrategyName:      req.StrategyName,
		Provider:          req.Provider,
		Cadence:           req.Cadence,
		InitialInvestment: req.InitialInvestment,
		CashLimit:         req.CashLimit,
		CashBuffer:        req.CashBuffer,
		TargetPositions:   req.TargetPositions,
		NextRebalanceAt:   req.NextRebalanceAt,
	}

	if req.Provider == domain.ProviderCopyTrade {
		if req.CopyTrade == nil || req.CopyTrade.CounterpartyAddress == "" {
			return nil, errors.New("copy_trade.counterparty_address is required")
		}
		p.Replay = &domain.ReplayCursor{
			CounterpartyAddress: req.CopyTrade.CounterpartyAddress,
			Credentials: domain.VenueCredentials{
				Address:    req.CopyTrade.Address,
				APIKey:     req.CopyTrade.APIKey,
				Secret:     req.CopyTrade.Secret,
				Passphrase: req.CopyTrade.Passphrase,
			},
		}
	}
	return p, nil
}

// HandleList returns portfolios, optionally filtered by owner
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.store.List(r.Context(), r.URL.Query().Get("owner_id"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list portfolios")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if portfolios == nil {
		portfolios = []*domain.Portfolio{}
	}
	h.writeJSON(w, http.StatusOK, portfolios)
}

// HandleGet returns a single portfolio
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleCreate stores a new portfolio
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := req.toPortfolio()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Create(r.Context(), p); err != nil {
		h.log.Error().Err(err).Msg("Failed to create portfolio")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// HandleDelete removes a portfolio
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReconcile runs one cycle for a portfolio now
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.log.Info().Str("portfolio_id", id).Msg("Manual reconcile triggered")

	err := h.runner.RunOne(r.Context(), id)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "reconciled", "portfolio_id": id})
	case errors.Is(err, scheduler.ErrSweepInProgress):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPortfolioNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, domain.ErrInvalidTargets):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrVenueUnavailable):
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// Helper methods

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrPortfolioNotFound) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Portfolio store failed")
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
