package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/reconciliation-backend/internal/api/dto"
	"github.com/ledgerlink/reconciliation-backend/internal/application/reconcile"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/matcher"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/reconciler"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/storage"
)

// Full stack against an in-memory database: seed documents, run
// reconciliation through the HTTP endpoint, verify the resulting
// transaction state.
func TestIntegration_ReconcileBatchCollection(t *testing.T) {
	// Arrange
	store, err := storage.NewStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	collectionDate := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveInvoice(ctx, &banking.Invoice{
		ID: "SI-2024-001", Customer: "J. Smith",
		GrandTotal:  decimal.RequireFromString("250.00"),
		Outstanding: decimal.RequireFromString("250.00"),
		Status:      banking.InvoiceUnpaid, DueDate: collectionDate,
	}))
	require.NoError(t, store.SaveBatch(ctx, &banking.DirectDebitBatch{
		ID: "DDB2024-001", CollectionDate: collectionDate,
		TotalAmount: decimal.RequireFromString("250.00"),
		Status:      banking.BatchSubmitted,
		Lines: []banking.BatchLine{
			{Invoice: "SI-2024-001", Amount: decimal.RequireFromString("250.00"), PartyName: "J. Smith"},
		},
	}))
	require.NoError(t, store.SaveTransaction(ctx, &banking.BankTransaction{
		ID:          "tx1",
		Date:        time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Deposit:     decimal.RequireFromString("250.00"),
		Description: "SEPA COLLECTION BATCH-DDB2024-001",
		BankAccount: "Main Bank - NL",
		Status:      banking.StatusPending,
	}))

	server := NewServer(DefaultConfig(), store, buildTestOrchestrator(store), nil)

	// Act
	body, _ := json.Marshal(dto.ReconcileRequest{BankAccount: "Main Bank - NL"})
	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)

	var result dto.ReconcileResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 0, result.Unmatched)

	tx, err := store.TransactionByID(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, banking.StatusReconciled, tx.Status)
	assert.Equal(t, "Payment Entry", tx.ReferenceType)
	assert.NotEmpty(t, tx.ReferenceName)

	comments, err := store.CommentsForTransaction(ctx, "tx1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Contains(t, comments[0], "Auto-reconciled: Exact batch reference match")
	assert.Contains(t, comments[0], "100%")

	// Rerun is a no-op: the transaction is no longer pending
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/reconcile", bytes.NewReader(body))
	server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 0, result.Total)
}

func TestIntegration_AmbiguousStaysPending(t *testing.T) {
	// Arrange: two batch lines share the amount and reference
	store, err := storage.NewStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	collectionDate := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"SI-2024-010", "SI-2024-011"} {
		require.NoError(t, store.SaveInvoice(ctx, &banking.Invoice{
			ID: id, GrandTotal: decimal.RequireFromString("100.00"),
			Outstanding: decimal.RequireFromString("100.00"),
			Status:      banking.InvoiceUnpaid, DueDate: collectionDate,
		}))
	}
	require.NoError(t, store.SaveBatch(ctx, &banking.DirectDebitBatch{
		ID: "DDB2024-005", CollectionDate: collectionDate,
		TotalAmount: decimal.RequireFromString("200.00"),
		Status:      banking.BatchSubmitted,
		Lines: []banking.BatchLine{
			{Invoice: "SI-2024-010", Amount: decimal.RequireFromString("100.00")},
			{Invoice: "SI-2024-011", Amount: decimal.RequireFromString("100.00")},
		},
	}))
	require.NoError(t, store.SaveTransaction(ctx, &banking.BankTransaction{
		ID:              "tx2",
		Date:            time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Deposit:         decimal.RequireFromString("100.00"),
		Description:     "contribution",
		ReferenceNumber: "DDB2024-005",
		BankAccount:     "Main Bank - NL",
		Status:          banking.StatusPending,
	}))

	server := NewServer(DefaultConfig(), store, buildTestOrchestrator(store), nil)

	// Act
	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	// Assert: the transaction is annotated but not reconciled
	require.Equal(t, http.StatusOK, rec.Code)

	tx, err := store.TransactionByID(ctx, "tx2")
	require.NoError(t, err)
	assert.Equal(t, banking.StatusPending, tx.Status)

	comments, err := store.CommentsForTransaction(ctx, "tx2")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Contains(t, comments[0], "Manual review required")
}

// buildTestOrchestrator wires the cascade without a settlements
// provider.
func buildTestOrchestrator(store *storage.Storage) *reconcile.Orchestrator {
	config := matcher.DefaultConfig()
	arbiter := matcher.NewArbiter([]matcher.Strategy{
		matcher.NewBatchReferenceStrategy(store),
		matcher.NewAmountReferenceStrategy(store, config),
		matcher.NewDescriptionStrategy(store, config),
	}, config, nil)
	executor := reconciler.NewExecutor(store, store, nil, nil, nil)
	return reconcile.NewOrchestrator(store, arbiter, executor, store, nil)
}
