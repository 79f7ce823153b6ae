package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerlink/reconciliation-backend/internal/api/dto"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/storage"
)

// TransactionsHandler serves bank transactions with their audit
// trail.
type TransactionsHandler struct {
	*Base
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store *storage.Storage) *TransactionsHandler {
	return &TransactionsHandler{
		Base: NewBase(store),
	}
}

// Get handles GET /api/transactions/{id} - returns a transaction with
// its comments and postings.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("transaction ID is required"))
		return
	}

	tx, err := h.store.TransactionByID(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if tx == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("bank transaction"))
		return
	}

	comments, err := h.store.CommentsForTransaction(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	postings, err := h.store.PostingsForTransaction(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.TransactionResponse{
		ID:              tx.ID,
		Date:            tx.Date.Format("2006-01-02"),
		Deposit:         tx.Deposit.StringFixed(2),
		Withdrawal:      tx.Withdrawal.StringFixed(2),
		Description:     tx.Description,
		BankAccount:     tx.BankAccount,
		ReferenceNumber: tx.ReferenceNumber,
		Status:          string(tx.Status),
		ReferenceType:   tx.ReferenceType,
		ReferenceName:   tx.ReferenceName,
		Comments:        comments,
		Postings:        postings,
	})
}
