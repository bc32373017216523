// Package server provides the HTTP server and routing for Autopilot.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/autopilot/internal/domain"
	portfoliohandlers "github.com/aristath/autopilot/internal/modules/portfolio/handlers"
	"github.com/aristath/autopilot/internal/scheduler"
)

// Sweeper is the manual-trigger surface of the scheduler
type Sweeper interface {
	Sweep(ctx context.Context) (scheduler.SweepResult, bool)
	RunOne(ctx context.Context, id string) error
	Running() bool
}

// LogSource reads the audit trail
type LogSource interface {
	ListByStrategy(ctx context.Context, strategyID string, limit int) ([]domain.StrategyLogEntry, error)
}

// Pinger reports database reachability
type Pinger interface {
	QuickCheck(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Port       int
	DevMode    bool
	Version    string
	Portfolios portfoliohandlers.Store
	Sweeper    Sweeper
	Logs       LogSource
	Database   Pinger
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	systemHandlers *SystemHandlers
	logHandlers    *LogHandlers
	portfolios     *portfoliohandlers.Handler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg,
		systemHandlers: NewSystemHandlers(cfg.Sweeper, cfg.Database, cfg.Log),
		logHandlers:    NewLogHandlers(cfg.Logs, cfg.Log),
		portfolios:     portfoliohandlers.NewHandler(cfg.Portfolios, cfg.Sweeper, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // manual reconcile waits for the whole cycle
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/stats", s.systemHandlers.HandleSystemStats)
		})
		r.Post("/sweep", s.systemHandlers.HandleTriggerSweep)

		r.Get("/strategies/{id}/logs", s.logHandlers.HandleStrategyLogs)

		s.portfolios.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
