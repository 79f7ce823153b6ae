package handlers

import (
	"net/http"
	"time"

	"github.com/ledgerlink/reconciliation-backend/internal/api/dto"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/storage"
)

// SummaryHandler reports reconciliation status counts.
type SummaryHandler struct {
	*Base
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(store *storage.Storage) *SummaryHandler {
	return &SummaryHandler{
		Base: NewBase(store),
	}
}

// Get handles GET /api/summary - returns transaction counts by status
// over an optional from/to date window.
func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("from must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("to must be YYYY-MM-DD"))
			return
		}
		to = parsed
	}

	summary, err := h.store.Summary(r.Context(), from, to)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.SummaryResponse{
		TotalTransactions:  summary.TotalTransactions,
		Reconciled:         summary.Reconciled,
		Pending:            summary.Pending,
		Unmatched:          summary.Unmatched,
		ReconciliationRate: summary.ReconciliationRate,
	})
}
