package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerlink/reconciliation-backend/internal/api/dto"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/storage"
)

// RunsHandler handles reconciliation run history requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(store *storage.Storage) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(store),
	}
}

// List handles GET /api/runs - returns recent reconciliation runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.store.RunByID(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if run == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("reconciliation run"))
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(*run))
}

// toRunResponse converts a storage RunRecord to an API response.
func toRunResponse(run storage.RunRecord) dto.RunResponse {
	return dto.RunResponse{
		RunID:       run.RunID,
		BankAccount: run.BankAccount,
		FromDate:    run.FromDate,
		ToDate:      run.ToDate,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Total:       run.Total,
		Matched:     run.Matched,
		Unmatched:   run.Unmatched,
		DurationMS:  run.DurationMS,
		Status:      run.Status,
	}
}
