// Package handlers provides HTTP endpoints over the paper portfolio.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/modules/paper"
)

// Handler handles paper portfolio HTTP requests
type Handler struct {
	ledger  *paper.LedgerService
	balance *paper.BalanceService
	log     zerolog.Logger
}

// NewHandler creates a new paper handler
func NewHandler(ledger *paper.LedgerService, balance *paper.BalanceService, log zerolog.Logger) *Handler {
	return &Handler{
		ledger:  ledger,
		balance: balance,
		log:     log.With().Str("handler", "paper").Logger(),
	}
}

// HandleGetPositions returns every held cost-basis position
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.ledger.Positions(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, positions)
}

// HandleGetBalance returns the simulated balance
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.balance.Balance(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if b == nil {
		h.writeError(w, http.StatusNotFound, "balance not initialized")
		return
	}

	h.writeJSON(w, http.StatusOK, b)
}

type reconcileRequest struct {
	RealBalance float64 `json:"real_balance"`
}

// HandleReconcileBalance reconciles the simulated balance against the real
// account balance
func (h *Handler) HandleReconcileBalance(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RealBalance < 0 {
		h.writeError(w, http.StatusBadRequest, "real_balance must not be negative")
		return
	}

	b, err := h.balance.Reconcile(r.Context(), req.RealBalance)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, b)
}

// HandleGetHistory returns the most recent paper trades
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	history, err := h.ledger.TradeHistory(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, history)
}

// HandleClear wipes the paper portfolio
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.ClearAll(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
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
