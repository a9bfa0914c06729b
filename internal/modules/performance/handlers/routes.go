package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers performance read routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/performance", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Get("/{asset}", h.HandleGetAsset)
	})
	r.Get("/stats", h.HandleGetStats)
}
