package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ledgerlink/reconciliation-backend/internal/api/dto"
	"github.com/ledgerlink/reconciliation-backend/internal/application/reconcile"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/storage"
)

// ReconcileHandler starts reconciliation runs over HTTP.
type ReconcileHandler struct {
	*Base
	orchestrator *reconcile.Orchestrator
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(store *storage.Storage, orchestrator *reconcile.Orchestrator) *ReconcileHandler {
	return &ReconcileHandler{
		Base:         NewBase(store),
		orchestrator: orchestrator,
	}
}

// Run handles POST /api/reconcile - runs reconciliation over the
// requested window and returns aggregate counts. An empty body runs
// over all pending transactions.
func (h *ReconcileHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	opts := reconcile.Options{BankAccount: req.BankAccount}

	if req.FromDate != "" {
		from, err := time.Parse("2006-01-02", req.FromDate)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("from_date must be YYYY-MM-DD"))
			return
		}
		opts.FromDate = from
	}
	if req.ToDate != "" {
		to, err := time.Parse("2006-01-02", req.ToDate)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("to_date must be YYYY-MM-DD"))
			return
		}
		opts.ToDate = to
	}

	result, err := h.orchestrator.Reconcile(r.Context(), opts)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ReconcileResponse{
		Total:     result.Total,
		Matched:   result.Matched,
		Unmatched: result.Unmatched,
	})
}
