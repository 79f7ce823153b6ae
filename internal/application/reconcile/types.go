// Package reconcile orchestrates reconciliation runs over windows of
// pending bank transactions.
package reconcile

import (
	"context"
	"time"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
)

// Options bounds one reconciliation run. Zero values mean "no filter".
type Options struct {
	BankAccount string
	FromDate    time.Time
	ToDate      time.Time
}

// Result holds the aggregate counts of one run. It is always returned,
// even when individual transactions failed.
type Result struct {
	Total     int `json:"total"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}

// TransactionSource lists the pending transactions of a window.
type TransactionSource interface {
	// PendingTransactions returns transactions with status Pending and
	// no reference set, narrowed by the options. Previously reconciled
	// transactions are excluded by the filter itself, which is what
	// makes repeated runs idempotent.
	PendingTransactions(ctx context.Context, opts Options) ([]*banking.BankTransaction, error)
}

// RunRecorder tracks reconciliation runs for history and reporting.
type RunRecorder interface {
	StartRun(ctx context.Context, runID string, opts Options) error
	CompleteRun(ctx context.Context, runID string, result Result, duration time.Duration) error
}

// Summary is the reconciliation status report over a window.
type Summary struct {
	TotalTransactions  int     `json:"total_transactions"`
	Reconciled         int     `json:"reconciled"`
	Pending            int     `json:"pending"`
	Unmatched          int     `json:"unmatched"`
	ReconciliationRate float64 `json:"reconciliation_rate"`
}
