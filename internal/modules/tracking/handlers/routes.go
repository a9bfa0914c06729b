package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers fill ingestion and snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/fills", h.HandleApplyFill)
	r.Get("/snapshot", h.HandleGetSnapshot)
	r.Post("/outcomes/recalculate", h.HandleRecalculate)
}
