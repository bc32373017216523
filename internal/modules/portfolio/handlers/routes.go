package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleList)                     // ?owner_id= filters by owner
		r.Post("/", h.HandleCreate)                  // Strategy activation
		r.Get("/{id}", h.HandleGet)                  // Single document
		r.Delete("/{id}", h.HandleDelete)            // Out-of-band removal
		r.Post("/{id}/reconcile", h.HandleReconcile) // Manual cycle, single-flight with the sweep
	})
}
