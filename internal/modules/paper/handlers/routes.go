package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers paper portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/paper", func(r chi.Router) {
		r.Get("/positions", h.HandleGetPositions)
		r.Get("/balance", h.HandleGetBalance)
		r.Post("/balance/reconcile", h.HandleReconcileBalance)
		r.Get("/history", h.HandleGetHistory)
		r.Post("/clear", h.HandleClear)
	})
}
