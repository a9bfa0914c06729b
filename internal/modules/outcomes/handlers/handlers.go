// Package handlers provides read endpoints over trade outcome lots.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/modules/outcomes"
)

// Handler handles outcome HTTP requests
type Handler struct {
	service *outcomes.Service
	log     zerolog.Logger
}

// NewHandler creates a new outcomes handler
func NewHandler(service *outcomes.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "outcomes").Logger(),
	}
}

// HandleGetAllOpen returns every open and partial lot
func (h *Handler) HandleGetAllOpen(w http.ResponseWriter, r *http.Request) {
	lots, err := h.service.AllOpenEntries(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, lots)
}

// HandleGetOpen returns the asset's open and partial lots, oldest first
func (h *Handler) HandleGetOpen(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")

	lots, err := h.service.OpenEntries(r.Context(), asset)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, lots)
}

// HandleGetRecent returns the asset's most recently closed lots
func (h *Handler) HandleGetRecent(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	lots, err := h.service.RecentOutcomes(r.Context(), asset, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, lots)
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
