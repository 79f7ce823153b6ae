package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerlink/reconciliation-backend/internal/domain/banking"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/matcher"
)

// openInvoiceStatuses are the invoice states a payment can still land
// on.
var openInvoiceStatuses = []string{string(banking.InvoiceUnpaid), string(banking.InvoiceOverdue)}

// SaveInvoice inserts or updates a sales invoice.
func (s *Storage) SaveInvoice(ctx context.Context, inv *banking.Invoice) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO invoices
	(id, customer, membership, grand_total, outstanding, status, due_date)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Customer, inv.Membership, amt(inv.GrandTotal),
		amt(inv.Outstanding), string(inv.Status), day(inv.DueDate))
	return err
}

// InvoiceByID returns (nil, nil) when the invoice does not exist.
func (s *Storage) InvoiceByID(ctx context.Context, id string) (*banking.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, customer, membership, grand_total, outstanding, status, due_date
	FROM invoices WHERE id = ?`, id)

	var inv banking.Invoice
	var grandTotal, outstanding, status, dueDate string
	err := row.Scan(&inv.ID, &inv.Customer, &inv.Membership, &grandTotal,
		&outstanding, &status, &dueDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	inv.GrandTotal = parseAmt(grandTotal)
	inv.Outstanding = parseAmt(outstanding)
	inv.Status = banking.InvoiceStatus(status)
	inv.DueDate = parseDay(dueDate)
	return &inv, nil
}

// InvoiceExists implements matcher.Directory.
func (s *Storage) InvoiceExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM invoices WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// SaveMember inserts or updates a member.
func (s *Storage) SaveMember(ctx context.Context, m *banking.Member) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO members (id, full_name) VALUES (?, ?)", m.ID, m.FullName)
	return err
}

// SaveMembership inserts or updates a membership.
func (s *Storage) SaveMembership(ctx context.Context, m *banking.Membership) error {
	paymentDate := ""
	if !m.PaymentDate.IsZero() {
		paymentDate = day(m.PaymentDate)
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO memberships (id, member, payment_status, payment_date)
	VALUES (?, ?, ?, ?)`,
		m.ID, m.Member, m.PaymentStatus, paymentDate)
	return err
}

// MembershipByID returns (nil, nil) when the membership does not exist.
func (s *Storage) MembershipByID(ctx context.Context, id string) (*banking.Membership, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, member, payment_status, payment_date FROM memberships WHERE id = ?", id)

	var m banking.Membership
	var paymentDate string
	err := row.Scan(&m.ID, &m.Member, &m.PaymentStatus, &paymentDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if paymentDate != "" {
		m.PaymentDate = parseDay(paymentDate)
	}
	return &m, nil
}

// SaveMandate records a SEPA mandate for a member.
func (s *Storage) SaveMandate(ctx context.Context, mandateID, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO sepa_mandates (mandate_id, member) VALUES (?, ?)",
		mandateID, memberID)
	return err
}

// MemberForMandate implements matcher.Directory.
func (s *Storage) MemberForMandate(ctx context.Context, mandateRef string) (string, error) {
	var member string
	err := s.db.QueryRowContext(ctx,
		"SELECT member FROM sepa_mandates WHERE mandate_id = ?", mandateRef).Scan(&member)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return member, err
}

// SaveBatch inserts or updates a direct-debit batch with its lines.
func (s *Storage) SaveBatch(ctx context.Context, batch *banking.DirectDebitBatch) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback() }()

	if _, err := dbTx.ExecContext(ctx, `
	INSERT OR REPLACE INTO dd_batches (id, collection_date, total_amount, status)
	VALUES (?, ?, ?, ?)`,
		batch.ID, day(batch.CollectionDate), amt(batch.TotalAmount), string(batch.Status)); err != nil {
		return err
	}

	if _, err := dbTx.ExecContext(ctx, "DELETE FROM dd_batch_lines WHERE batch = ?", batch.ID); err != nil {
		return err
	}
	for _, line := range batch.Lines {
		if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO dd_batch_lines (batch, invoice, amount, party_name, mandate_reference)
		VALUES (?, ?, ?, ?, ?)`,
			batch.ID, line.Invoice, amt(line.Amount), line.PartyName, line.MandateReference); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// BatchByNameToken implements matcher.Directory: it finds a batch whose
// identifier contains the token.
func (s *Storage) BatchByNameToken(ctx context.Context, token string) (*banking.DirectDebitBatch, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT id, collection_date, total_amount, status
	FROM dd_batches WHERE id LIKE ? LIMIT 1`, "%"+token+"%")

	var batch banking.DirectDebitBatch
	var collectionDate, totalAmount, status string
	err := row.Scan(&batch.ID, &collectionDate, &totalAmount, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	batch.CollectionDate = parseDay(collectionDate)
	batch.TotalAmount = parseAmt(totalAmount)
	batch.Status = banking.BatchStatus(status)

	rows, err := s.db.QueryContext(ctx, `
	SELECT invoice, amount, party_name, mandate_reference
	FROM dd_batch_lines WHERE batch = ? ORDER BY id`, batch.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line banking.BatchLine
		var amount string
		if err := rows.Scan(&line.Invoice, &amount, &line.PartyName, &line.MandateReference); err != nil {
			return nil, err
		}
		line.Amount = parseAmt(amount)
		batch.Lines = append(batch.Lines, line)
	}
	return &batch, rows.Err()
}

// FindBatchLines implements matcher.Directory: batch lines joined to
// their parent batch and the linked invoice, filtered by amount,
// reference, batch status and collection-date window.
func (s *Storage) FindBatchLines(ctx context.Context, q matcher.BatchLineQuery) ([]matcher.BatchLineHit, error) {
	if len(q.Statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.Statuses)), ",")
	query := fmt.Sprintf(`
	SELECT l.batch, l.invoice, l.amount, l.party_name, COALESCE(i.customer, '')
	FROM dd_batch_lines l
	JOIN dd_batches b ON l.batch = b.id
	LEFT JOIN invoices i ON i.id = l.invoice
	WHERE l.amount = ?
	  AND (l.invoice = ? OR b.id LIKE ?)
	  AND b.status IN (%s)
	  AND b.collection_date BETWEEN ? AND ?
	ORDER BY b.collection_date DESC
	LIMIT ?`, placeholders)

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	args := []any{amt(q.Amount), q.Reference, "%" + q.Reference + "%"}
	for _, st := range q.Statuses {
		args = append(args, string(st))
	}
	args = append(args, day(q.WindowFrom), day(q.WindowTo), limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []matcher.BatchLineHit
	for rows.Next() {
		var hit matcher.BatchLineHit
		var amount string
		if err := rows.Scan(&hit.Batch, &hit.Invoice, &amount, &hit.PartyName, &hit.Customer); err != nil {
			return nil, err
		}
		hit.Amount = parseAmt(amount)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// OpenInvoiceForMembership implements matcher.Directory.
func (s *Storage) OpenInvoiceForMembership(ctx context.Context, membershipID string) (string, error) {
	var invoice string
	err := s.db.QueryRowContext(ctx, `
	SELECT id FROM invoices
	WHERE membership = ? AND status IN (?, ?)
	ORDER BY due_date DESC LIMIT 1`,
		membershipID, openInvoiceStatuses[0], openInvoiceStatuses[1]).Scan(&invoice)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return invoice, err
}

// OpenInvoicesForMember implements matcher.Directory.
func (s *Storage) OpenInvoicesForMember(ctx context.Context, memberID string, amount decimal.Decimal) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT i.id
	FROM invoices i
	JOIN memberships ms ON i.membership = ms.id
	WHERE ms.member = ? AND i.outstanding = ? AND i.status IN (?, ?)
	ORDER BY i.due_date DESC LIMIT 5`,
		memberID, amt(amount), openInvoiceStatuses[0], openInvoiceStatuses[1])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		invoices = append(invoices, id)
	}
	return invoices, rows.Err()
}

// PartiesWithOutstandingInvoice implements matcher.Directory.
func (s *Storage) PartiesWithOutstandingInvoice(ctx context.Context, amount decimal.Decimal) ([]matcher.PartyInvoice, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT DISTINCT m.id, m.full_name, i.id, i.customer
	FROM members m
	JOIN memberships ms ON ms.member = m.id
	JOIN invoices i ON i.membership = ms.id
	WHERE i.outstanding = ? AND i.status IN (?, ?)
	ORDER BY i.due_date DESC LIMIT 50`,
		amt(amount), openInvoiceStatuses[0], openInvoiceStatuses[1])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []matcher.PartyInvoice
	for rows.Next() {
		var p matcher.PartyInvoice
		if err := rows.Scan(&p.MemberID, &p.FullName, &p.Invoice, &p.Customer); err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

// AccountExists reports whether a ledger account with the given name
// exists.
func (s *Storage) AccountExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM accounts WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveAccount inserts or updates a ledger account.
func (s *Storage) SaveAccount(ctx context.Context, name, accountName, accountType string, isGroup bool) error {
	group := 0
	if isGroup {
		group = 1
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO accounts (name, account_name, account_type, is_group)
	VALUES (?, ?, ?, ?)`, name, accountName, accountType, group)
	return err
}
