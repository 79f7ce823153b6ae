package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/matcher"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/reconciler"
)

// Orchestrator runs the match-and-execute loop over all pending
// transactions of a window. Transactions are independent: no outcome
// depends on another transaction's, so processing order is free.
type Orchestrator struct {
	source   TransactionSource
	arbiter  *matcher.Arbiter
	executor *reconciler.Executor
	runs     RunRecorder
	logger   *slog.Logger
}

// NewOrchestrator creates a batch orchestrator. The run recorder may be
// nil when run history is not wanted (tests, dry tooling).
func NewOrchestrator(
	source TransactionSource,
	arbiter *matcher.Arbiter,
	executor *reconciler.Executor,
	runs RunRecorder,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		source:   source,
		arbiter:  arbiter,
		executor: executor,
		runs:     runs,
		logger:   logger,
	}
}

// Reconcile processes every pending transaction in the window and
// returns aggregate counts. Individual transaction failures are
// absorbed by the executor; the only error returned is a failure to
// list the transactions at all.
func (o *Orchestrator) Reconcile(ctx context.Context, opts Options) (*Result, error) {
	runID := uuid.NewString()
	started := time.Now()

	transactions, err := o.source.PendingTransactions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing pending transactions: %w", err)
	}

	o.logger.Info("Starting reconciliation run",
		"run_id", runID,
		"bank_account", opts.BankAccount,
		"pending", len(transactions))

	if o.runs != nil {
		if err := o.runs.StartRun(ctx, runID, opts); err != nil {
			o.logger.Error("Failed to record run start", "run_id", runID, "error", err.Error())
		}
	}

	result := &Result{Total: len(transactions)}
	for _, tx := range transactions {
		if o.reconcileOne(ctx, tx) {
			result.Matched++
		} else {
			result.Unmatched++
		}
	}

	duration := time.Since(started)
	if o.runs != nil {
		if err := o.runs.CompleteRun(ctx, runID, *result, duration); err != nil {
			o.logger.Error("Failed to record run completion", "run_id", runID, "error", err.Error())
		}
	}

	o.logger.Info("Reconciliation run complete",
		"run_id", runID,
		"total", result.Total,
		"matched", result.Matched,
		"unmatched", result.Unmatched,
		"duration", duration.Round(time.Millisecond).String())

	return result, nil
}

// reconcileOne matches and executes a single transaction. Nothing a
// single transaction does can abort the batch.
func (o *Orchestrator) reconcileOne(ctx context.Context, tx *banking.BankTransaction) bool {
	o.logger.Debug("Processing transaction",
		"transaction_id", tx.ID,
		"date", tx.Date.Format("2006-01-02"),
		"amount", tx.Deposit.StringFixed(2))

	candidate := o.arbiter.Match(ctx, tx)
	if candidate == nil {
		// Not an error: the transaction stays Pending for a later run
		// or human review.
		return false
	}

	return o.executor.Reconcile(ctx, tx, candidate)
}
