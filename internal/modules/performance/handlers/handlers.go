// Package handlers provides read endpoints over performance aggregates.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/modules/performance"
)

// Handler handles performance HTTP requests
type Handler struct {
	service *performance.Service
	log     zerolog.Logger
}

// NewHandler creates a new performance handler
func NewHandler(service *performance.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "performance").Logger(),
	}
}

// HandleGetAll returns every asset's aggregate
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.AllPerformance(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, records)
}

// HandleGetAsset returns one asset's aggregate with derived ratios
func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")

	perf, err := h.service.Performance(r.Context(), asset)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if perf == nil {
		h.writeError(w, http.StatusNotFound, "no closed trades for asset")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"performance":       perf,
		"win_rate":          perf.WinRate(),
		"avg_pnl_per_trade": perf.AvgPnLPerTrade(),
	})
}

// HandleGetStats returns the portfolio-wide aggregate
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":    stats,
		"win_rate": stats.WinRate(),
		"summary":  stats.Summary(),
	})
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
