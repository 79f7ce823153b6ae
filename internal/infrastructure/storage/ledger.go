package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/reconciler"
)

// feeAccountPatterns are probed in order when no processing-fees
// account is configured.
var feeAccountPatterns = []string{
	"Payment Processing Fees",
	"Transaction Fees",
	"Banking Fees",
	"Financial Service Charges",
}

// CreatePaymentPosting implements reconciler.Ledger. The posting is
// stored submitted (docstatus 1) or draft (docstatus 0) depending on
// the caller's submit permission, and the referenced invoice's
// outstanding amount is settled on submit.
func (s *Storage) CreatePaymentPosting(ctx context.Context, posting reconciler.PaymentPosting) (string, error) {
	if posting.Invoice == "" && posting.Batch == "" {
		return "", reconciler.NewValidationError("payment posting needs an invoice or batch reference", nil)
	}
	if !posting.Amount.IsPositive() {
		return "", reconciler.NewValidationError(
			fmt.Sprintf("payment posting amount must be positive, got %s", posting.Amount.StringFixed(2)), nil)
	}

	if posting.Invoice != "" {
		exists, err := s.InvoiceExists(ctx, posting.Invoice)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", reconciler.NewValidationError(
				fmt.Sprintf("invoice %s does not exist", posting.Invoice), nil)
		}
	}

	id := "PE-" + uuid.NewString()[:8]
	docstatus := 0
	if posting.Submit {
		docstatus = 1
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = dbTx.Rollback() }()

	if _, err := dbTx.ExecContext(ctx, `
	INSERT INTO postings
	(id, invoice, batch, amount, posting_date, reference_no, mode_of_payment,
	 source_account, bank_transaction, provider_payment_id, settlement_id, docstatus)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, posting.Invoice, posting.Batch, amt(posting.Amount), day(posting.Date),
		posting.ReferenceNo, posting.ModeOfPayment, posting.SourceAccount,
		posting.BankTransaction, posting.ProviderPaymentID, posting.SettlementID,
		docstatus); err != nil {
		return "", err
	}

	// Submitted postings settle the invoice's outstanding amount. Draft
	// postings leave the invoice untouched until manual submission.
	if posting.Submit && posting.Invoice != "" {
		if err := settleInvoice(ctx, dbTx, posting.Invoice, posting.Amount); err != nil {
			return "", err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// settleInvoice reduces the invoice's outstanding amount and flips the
// status to Paid when nothing remains.
func settleInvoice(ctx context.Context, dbTx *sql.Tx, invoiceID string, amount decimal.Decimal) error {
	var outstanding string
	if err := dbTx.QueryRowContext(ctx,
		"SELECT outstanding FROM invoices WHERE id = ?", invoiceID).Scan(&outstanding); err != nil {
		return err
	}

	remaining := parseAmt(outstanding).Sub(amount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	status := ""
	if remaining.IsZero() {
		status = "Paid"
	}

	if status != "" {
		_, err := dbTx.ExecContext(ctx,
			"UPDATE invoices SET outstanding = ?, status = ? WHERE id = ?",
			amt(remaining), status, invoiceID)
		return err
	}
	_, err := dbTx.ExecContext(ctx,
		"UPDATE invoices SET outstanding = ? WHERE id = ?", amt(remaining), invoiceID)
	return err
}

// CreateBalancingEntry implements reconciler.Ledger.
func (s *Storage) CreateBalancingEntry(ctx context.Context, entry reconciler.BalancingEntry) (string, error) {
	if entry.DebitAccount == "" || entry.CreditAccount == "" {
		return "", reconciler.NewValidationError("balancing entry needs both accounts", nil)
	}

	id := "JE-" + uuid.NewString()[:8]
	docstatus := 0
	if entry.Submit {
		docstatus = 1
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO balancing_entries
	(id, debit_account, credit_account, amount, entry_date, note, docstatus)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, entry.DebitAccount, entry.CreditAccount, amt(entry.Amount),
		day(entry.Date), entry.Note, docstatus)
	if err != nil {
		return "", err
	}
	return id, nil
}

// PostingExistsForPayment implements reconciler.Ledger: the
// authoritative duplicate check for settlement payments looks for a
// submitted posting referencing the provider payment id.
func (s *Storage) PostingExistsForPayment(ctx context.Context, providerPaymentID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM postings WHERE provider_payment_id = ? AND docstatus = 1 LIMIT 1",
		providerPaymentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// PostingsForTransaction lists posting ids referencing a bank
// transaction.
func (s *Storage) PostingsForTransaction(ctx context.Context, transactionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM postings WHERE bank_transaction = ? ORDER BY id", transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BalancingEntries lists balancing entries, newest first.
func (s *Storage) BalancingEntries(ctx context.Context) ([]reconciler.BalancingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT debit_account, credit_account, amount, entry_date, note, docstatus
	FROM balancing_entries ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []reconciler.BalancingEntry
	for rows.Next() {
		var e reconciler.BalancingEntry
		var amount, entryDate string
		var docstatus int
		if err := rows.Scan(&e.DebitAccount, &e.CreditAccount, &amount, &entryDate, &e.Note, &docstatus); err != nil {
			return nil, err
		}
		e.Amount = parseAmt(amount)
		e.Date = parseDay(entryDate)
		e.Submit = docstatus == 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ProcessingFeesAccount implements reconciler.Ledger: the configured
// account when set, otherwise discovery by name pattern, otherwise any
// leaf expense account.
func (s *Storage) ProcessingFeesAccount(ctx context.Context) (string, error) {
	if s.feesAccount != "" {
		return s.feesAccount, nil
	}

	for _, pattern := range feeAccountPatterns {
		var name string
		err := s.db.QueryRowContext(ctx,
			"SELECT name FROM accounts WHERE account_name LIKE ? LIMIT 1",
			"%"+pattern+"%").Scan(&name)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
	}

	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM accounts WHERE account_type = 'Expense' AND is_group = 0 LIMIT 1").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", reconciler.NewValidationError("no suitable account found for payment processing fees", nil)
	}
	return name, err
}
