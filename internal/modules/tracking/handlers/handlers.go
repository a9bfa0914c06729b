// Package handlers provides the HTTP surface for fill ingestion and the
// decision snapshot.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/domain"
	"github.com/vnnyx/lumina-capital/internal/modules/tracking"
)

// Handler handles fill and snapshot HTTP requests
type Handler struct {
	service *tracking.Service
	log     zerolog.Logger
}

// NewHandler creates a new tracking handler
func NewHandler(service *tracking.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "tracking").Logger(),
	}
}

type fillRequest struct {
	Symbol     string  `json:"symbol"`
	Asset      string  `json:"asset"`
	Side       string  `json:"side"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
	ExecutedAt string  `json:"executed_at,omitempty"`
	Rationale  string  `json:"rationale,omitempty"`
}

// HandleApplyFill ingests one executed fill
func (h *Handler) HandleApplyFill(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	executedAt := time.Now().UTC()
	if req.ExecutedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExecutedAt)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "executed_at must be RFC3339")
			return
		}
		executedAt = parsed.UTC()
	}

	fill := domain.Fill{
		Symbol:     req.Symbol,
		Asset:      req.Asset,
		Side:       domain.TradeSide(req.Side),
		Price:      req.Price,
		Quantity:   req.Quantity,
		ExecutedAt: executedAt,
		Rationale:  req.Rationale,
	}

	result, err := h.service.ApplyFill(r.Context(), fill)
	if err != nil {
		h.log.Warn().Err(err).Str("asset", req.Asset).Msg("Fill rejected")
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetSnapshot returns the consolidated decision snapshot
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

// HandleRecalculate rebuilds all aggregates from closed lots
func (h *Handler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if err := h.service.RebuildAll(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"duration_ms": time.Since(started).Milliseconds(),
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
