package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/reconciliation-backend/internal/api/dto"
	"github.com/ledgerlink/reconciliation-backend/internal/application/reconcile"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/storage"
)

func testServer(t *testing.T, orchestrator *reconcile.Orchestrator) (*Server, *storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewServer(DefaultConfig(), store, orchestrator, nil), store
}

func TestServer_Health(t *testing.T) {
	server, _ := testServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var health dto.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
}

func TestServer_ListRuns(t *testing.T) {
	// Arrange
	server, store := testServer(t, nil)
	ctx := context.Background()
	require.NoError(t, store.StartRun(ctx, "run-1", reconcile.Options{BankAccount: "Main Bank - NL"}))
	require.NoError(t, store.CompleteRun(ctx, "run-1", reconcile.Result{Total: 2, Matched: 2}, time.Second))

	// Act
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.RunListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, 1, response.Count)
	require.Len(t, response.Runs, 1)
	assert.Equal(t, "run-1", response.Runs[0].RunID)
	assert.Equal(t, "completed", response.Runs[0].Status)
}

func TestServer_GetRunNotFound(t *testing.T) {
	server, _ := testServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-404", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var apiErr dto.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
}

func TestServer_GetTransaction(t *testing.T) {
	server, store := testServer(t, nil)
	ctx := context.Background()
	require.NoError(t, store.SaveTransaction(ctx, &banking.BankTransaction{
		ID:          "tx1",
		Date:        time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Description: "SEPA COLLECTION BATCH-DDB2024-001",
		Status:      banking.StatusPending,
	}))
	require.NoError(t, store.AddComment(ctx, "tx1", "imported from bank feed"))

	req := httptest.NewRequest(http.MethodGet, "/api/transactions/tx1", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var tx dto.TransactionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tx))
	assert.Equal(t, "tx1", tx.ID)
	assert.Equal(t, "2024-06-15", tx.Date)
	assert.Equal(t, "Pending", tx.Status)
	assert.Equal(t, []string{"imported from bank feed"}, tx.Comments)
}

func TestServer_Summary(t *testing.T) {
	server, store := testServer(t, nil)
	ctx := context.Background()
	require.NoError(t, store.SaveTransaction(ctx, &banking.BankTransaction{
		ID: "tx1", Date: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Status: banking.StatusReconciled,
	}))
	require.NoError(t, store.SaveTransaction(ctx, &banking.BankTransaction{
		ID: "tx2", Date: time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC),
		Status: banking.StatusPending,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var summary dto.SummaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, 2, summary.TotalTransactions)
	assert.Equal(t, 1, summary.Reconciled)
	assert.InDelta(t, 50.0, summary.ReconciliationRate, 0.001)
}

func TestServer_SummaryBadDate(t *testing.T) {
	server, _ := testServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/summary?from=15-06-2024", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ReconcileDisabledWithoutOrchestrator(t *testing.T) {
	server, _ := testServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	// The route is not registered at all when no orchestrator is wired
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
