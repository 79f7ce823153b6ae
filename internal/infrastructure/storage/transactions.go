package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ledgerlink/reconciliation-backend/internal/application/reconcile"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
)

// SaveTransaction inserts or updates a bank transaction.
func (s *Storage) SaveTransaction(ctx context.Context, tx *banking.BankTransaction) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO bank_transactions
	(id, date, deposit, withdrawal, description, bank_account,
	 reference_number, status, reference_type, reference_name)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		day(tx.Date),
		amt(tx.Deposit),
		amt(tx.Withdrawal),
		tx.Description,
		tx.BankAccount,
		tx.ReferenceNumber,
		string(tx.Status),
		tx.ReferenceType,
		tx.ReferenceName,
	)
	return err
}

// TransactionByID retrieves a bank transaction, or (nil, nil) when it
// does not exist.
func (s *Storage) TransactionByID(ctx context.Context, id string) (*banking.BankTransaction, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, date, deposit, withdrawal, description, bank_account,
	       reference_number, status, reference_type, reference_name
	FROM bank_transactions WHERE id = ?`, id)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return tx, err
}

// PendingTransactions implements reconcile.TransactionSource: it lists
// transactions that are Pending and carry no reference yet, narrowed by
// the run options. Reconciled transactions never reappear here, which
// is what makes repeated runs idempotent.
func (s *Storage) PendingTransactions(ctx context.Context, opts reconcile.Options) ([]*banking.BankTransaction, error) {
	query := `
	SELECT id, date, deposit, withdrawal, description, bank_account,
	       reference_number, status, reference_type, reference_name
	FROM bank_transactions
	WHERE status = 'Pending' AND reference_name = ''`
	args := []any{}

	if opts.BankAccount != "" {
		query += " AND bank_account = ?"
		args = append(args, opts.BankAccount)
	}
	if !opts.FromDate.IsZero() {
		query += " AND date >= ?"
		args = append(args, day(opts.FromDate))
	}
	if !opts.ToDate.IsZero() {
		query += " AND date <= ?"
		args = append(args, day(opts.ToDate))
	}
	query += " ORDER BY date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*banking.BankTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// AddComment appends an audit comment to a transaction.
func (s *Storage) AddComment(ctx context.Context, transactionID, comment string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO transaction_comments (transaction_id, comment) VALUES (?, ?)",
		transactionID, comment)
	return err
}

// CommentsForTransaction returns a transaction's comments, oldest
// first.
func (s *Storage) CommentsForTransaction(ctx context.Context, transactionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT comment FROM transaction_comments WHERE transaction_id = ? ORDER BY id",
		transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// MarkMembershipPaid records the payment date on a membership.
func (s *Storage) MarkMembershipPaid(ctx context.Context, membershipID string, paidOn time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE memberships SET payment_status = 'Paid', payment_date = ? WHERE id = ?",
		day(paidOn), membershipID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*banking.BankTransaction, error) {
	var tx banking.BankTransaction
	var date, deposit, withdrawal, status string
	err := row.Scan(&tx.ID, &date, &deposit, &withdrawal, &tx.Description,
		&tx.BankAccount, &tx.ReferenceNumber, &status, &tx.ReferenceType, &tx.ReferenceName)
	if err != nil {
		return nil, err
	}
	tx.Date = parseDay(date)
	tx.Deposit = parseAmt(deposit)
	tx.Withdrawal = parseAmt(withdrawal)
	tx.Status = banking.TransactionStatus(status)
	return &tx, nil
}
