package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/matcher"
)

// Executor applies an accepted match to a bank transaction. Per
// transaction it drives the state machine
//
//	Pending -> Reconciled | Unmatched | Pending (manual review)
//
// A failure during posting creation always transitions the transaction
// to Unmatched with the reason recorded; the transaction is never left
// Pending with a posting already created behind it.
type Executor struct {
	store       TransactionStore
	ledger      Ledger
	permissions Permissions
	settlements *SettlementProcessor
	logger      *slog.Logger
}

// NewExecutor creates a reconciliation executor. The settlement
// processor may be nil when no provider is configured; settlement
// candidates are then marked unmatched.
func NewExecutor(
	store TransactionStore,
	ledger Ledger,
	permissions Permissions,
	settlements *SettlementProcessor,
	logger *slog.Logger,
) *Executor {
	if permissions == nil {
		permissions = AllowAll{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:       store,
		ledger:      ledger,
		permissions: permissions,
		settlements: settlements,
		logger:      logger,
	}
}

// Reconcile applies the candidate to the transaction and reports
// whether the transaction was reconciled. Errors never escape: every
// failure path marks the transaction Unmatched and returns false.
func (e *Executor) Reconcile(ctx context.Context, tx *banking.BankTransaction, candidate *matcher.Candidate) bool {
	if !e.permissions.HasPermission("Bank Transaction", "write") {
		e.failValidation(ctx, tx, "insufficient permissions to update bank transactions")
		return false
	}

	switch candidate.Type {
	case matcher.CandidateInvoice, matcher.CandidateBatch:
		return e.reconcilePayment(ctx, tx, candidate)

	case matcher.CandidateMultiple:
		// Conservative by intent: ambiguous money is never auto-posted.
		comment := fmt.Sprintf("Multiple matches found: %d invoices with amount %s - Manual review required",
			len(candidate.Matches), tx.Deposit.StringFixed(2))
		if err := e.store.AddComment(ctx, tx.ID, comment); err != nil {
			e.logger.Error("Failed to annotate ambiguous transaction",
				"transaction_id", tx.ID, "error", err.Error())
		}
		return false

	case matcher.CandidateSettlement:
		return e.reconcileSettlement(ctx, tx, candidate)

	default:
		e.fail(ctx, tx, fmt.Sprintf("unknown candidate type %q", candidate.Type))
		return false
	}
}

// reconcilePayment creates a single payment posting for the full
// transaction amount and transitions the transaction to Reconciled.
func (e *Executor) reconcilePayment(ctx context.Context, tx *banking.BankTransaction, candidate *matcher.Candidate) bool {
	if !e.permissions.HasPermission("Payment Entry", "create") {
		e.failValidation(ctx, tx, "insufficient permissions to create payment entries")
		return false
	}

	posting := PaymentPosting{
		Amount:          tx.Deposit,
		Date:            tx.Date,
		ReferenceNo:     tx.ReferenceNumber,
		ModeOfPayment:   "SEPA Direct Debit",
		BankTransaction: tx.ID,
		Submit:          e.permissions.HasPermission("Payment Entry", "submit"),
	}
	if candidate.Type == matcher.CandidateBatch {
		posting.Batch = candidate.Reference
		if posting.ReferenceNo == "" {
			posting.ReferenceNo = candidate.Reference
		}
	} else {
		posting.Invoice = candidate.Reference
		if posting.ReferenceNo == "" {
			posting.ReferenceNo = candidate.Batch
		}
	}

	postingID, err := e.ledger.CreatePaymentPosting(ctx, posting)
	if err != nil {
		if IsValidation(err) {
			e.failValidation(ctx, tx, fmt.Sprintf("payment entry validation failed: %v", err))
		} else {
			e.fail(ctx, tx, fmt.Sprintf("payment creation failed: %v", err))
		}
		return false
	}

	if !posting.Submit {
		e.logger.Warn("Payment posting left in draft, submit permission missing",
			"transaction_id", tx.ID, "posting_id", postingID)
	}

	tx.Status = banking.StatusReconciled
	tx.ReferenceType = "Payment Entry"
	tx.ReferenceName = postingID
	if err := e.store.SaveTransaction(ctx, tx); err != nil {
		// The posting exists but the status update failed; fall back to
		// Unmatched so the transaction is never ambiguously Pending.
		e.fail(ctx, tx, fmt.Sprintf("status update failed after posting %s: %v", postingID, err))
		return false
	}

	e.comment(ctx, tx.ID, fmt.Sprintf("Auto-reconciled: %s (Confidence: %.0f%%)",
		candidate.Reason, candidate.Confidence*100))

	if candidate.Type == matcher.CandidateInvoice {
		e.updateMembershipStatus(ctx, tx, candidate.Reference)
	}

	e.logger.Info("Transaction reconciled",
		"transaction_id", tx.ID,
		"posting_id", postingID,
		"type", string(candidate.Type),
		"confidence", candidate.Confidence)
	return true
}

// reconcileSettlement delegates to the settlement processor and records
// the per-payment breakdown on the transaction.
func (e *Executor) reconcileSettlement(ctx context.Context, tx *banking.BankTransaction, candidate *matcher.Candidate) bool {
	if e.settlements == nil {
		e.fail(ctx, tx, "settlement candidate but no settlement processor configured")
		return false
	}

	result, err := e.settlements.Process(ctx, tx, candidate.Settlement)
	if err != nil {
		if IsValidation(err) {
			e.failValidation(ctx, tx, fmt.Sprintf("settlement validation failed: %v", err))
		} else {
			e.fail(ctx, tx, fmt.Sprintf("settlement processing failed: %v", err))
		}
		return false
	}

	e.comment(ctx, tx.ID, fmt.Sprintf("Mollie settlement processed: %d/%d payments. Fees: %s",
		result.Processed, result.TotalPayments, result.Fees.StringFixed(2)))

	tx.Status = banking.StatusReconciled
	tx.ReferenceType = "Mollie Settlement"
	tx.ReferenceName = candidate.Reference
	if err := e.store.SaveTransaction(ctx, tx); err != nil {
		e.fail(ctx, tx, fmt.Sprintf("status update failed after settlement %s: %v", candidate.Reference, err))
		return false
	}

	e.comment(ctx, tx.ID, fmt.Sprintf("Auto-reconciled: %s (Confidence: %.0f%%)",
		candidate.Reason, candidate.Confidence*100))

	e.logger.Info("Settlement transaction reconciled",
		"transaction_id", tx.ID,
		"settlement_id", candidate.Reference,
		"processed", result.Processed,
		"total_payments", result.TotalPayments)
	return true
}

// updateMembershipStatus marks the membership linked to the paid
// invoice as paid. Best effort: permission denials and errors are
// logged, never fail the reconciliation.
func (e *Executor) updateMembershipStatus(ctx context.Context, tx *banking.BankTransaction, invoiceID string) {
	invoice, err := e.store.InvoiceByID(ctx, invoiceID)
	if err != nil || invoice == nil || invoice.Membership == "" {
		return
	}

	if !e.permissions.HasPermission("Membership", "write") {
		e.logger.Warn("Cannot update membership, no write permission",
			"membership", invoice.Membership, "channel", "validation")
		return
	}

	if err := e.store.MarkMembershipPaid(ctx, invoice.Membership, tx.Date); err != nil {
		e.logger.Error("Error updating membership status",
			"membership", invoice.Membership, "error", err.Error())
	}
}

// fail marks the transaction Unmatched with the reason. Generic error
// channel.
func (e *Executor) fail(ctx context.Context, tx *banking.BankTransaction, reason string) {
	e.logger.Error("Reconciliation failed",
		"transaction_id", tx.ID, "reason", reason, "channel", "error")
	e.markUnmatched(ctx, tx, reason)
}

// failValidation marks the transaction Unmatched with the reason,
// logged on the validation channel.
func (e *Executor) failValidation(ctx context.Context, tx *banking.BankTransaction, reason string) {
	e.logger.Warn("Reconciliation blocked by validation",
		"transaction_id", tx.ID, "reason", reason, "channel", "validation")
	e.markUnmatched(ctx, tx, reason)
}

func (e *Executor) markUnmatched(ctx context.Context, tx *banking.BankTransaction, reason string) {
	tx.Status = banking.StatusUnmatched
	if err := e.store.SaveTransaction(ctx, tx); err != nil {
		e.logger.Error("Error marking transaction unmatched",
			"transaction_id", tx.ID, "error", err.Error())
		return
	}
	e.comment(ctx, tx.ID, fmt.Sprintf("Reconciliation failed: %s", reason))
}

func (e *Executor) comment(ctx context.Context, transactionID, comment string) {
	if err := e.store.AddComment(ctx, transactionID, comment); err != nil {
		e.logger.Error("Failed to add transaction comment",
			"transaction_id", transactionID, "error", err.Error())
	}
}
