package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers outcome read routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/outcomes", func(r chi.Router) {
		r.Get("/open", h.HandleGetAllOpen)
		r.Get("/{asset}/open", h.HandleGetOpen)
		r.Get("/{asset}/recent", h.HandleGetRecent)
	})
}
