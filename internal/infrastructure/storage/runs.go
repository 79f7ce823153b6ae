package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ledgerlink/reconciliation-backend/internal/application/reconcile"
)

// RunRecord is one reconciliation run in history.
type RunRecord struct {
	RunID       string `json:"run_id"`
	BankAccount string `json:"bank_account,omitempty"`
	FromDate    string `json:"from_date,omitempty"`
	ToDate      string `json:"to_date,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Total       int    `json:"total"`
	Matched     int    `json:"matched"`
	Unmatched   int    `json:"unmatched"`
	DurationMS  int64  `json:"duration_ms"`
	Status      string `json:"status"`
}

// StartRun implements reconcile.RunRecorder.
func (s *Storage) StartRun(ctx context.Context, runID string, opts reconcile.Options) error {
	fromDate, toDate := "", ""
	if !opts.FromDate.IsZero() {
		fromDate = day(opts.FromDate)
	}
	if !opts.ToDate.IsZero() {
		toDate = day(opts.ToDate)
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO reconciliation_runs
	(run_id, bank_account, from_date, to_date, started_at, status)
	VALUES (?, ?, ?, ?, ?, 'running')`,
		runID, opts.BankAccount, fromDate, toDate,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// CompleteRun implements reconcile.RunRecorder.
func (s *Storage) CompleteRun(ctx context.Context, runID string, result reconcile.Result, duration time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE reconciliation_runs
	SET completed_at = ?, total = ?, matched = ?, unmatched = ?,
	    duration_ms = ?, status = 'completed'
	WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		result.Total, result.Matched, result.Unmatched,
		duration.Milliseconds(), runID)
	return err
}

// ListRuns returns recent reconciliation runs, newest first.
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT run_id, bank_account, from_date, to_date, started_at, completed_at,
	       total, matched, unmatched, duration_ms, status
	FROM reconciliation_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.BankAccount, &r.FromDate, &r.ToDate,
			&r.StartedAt, &r.CompletedAt, &r.Total, &r.Matched, &r.Unmatched,
			&r.DurationMS, &r.Status); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunByID returns a single run record, or (nil, nil) when the run
// does not exist.
func (s *Storage) RunByID(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT run_id, bank_account, from_date, to_date, started_at, completed_at,
	       total, matched, unmatched, duration_ms, status
	FROM reconciliation_runs WHERE run_id = ?`, runID)

	var r RunRecord
	err := row.Scan(&r.RunID, &r.BankAccount, &r.FromDate, &r.ToDate,
		&r.StartedAt, &r.CompletedAt, &r.Total, &r.Matched, &r.Unmatched,
		&r.DurationMS, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Summary reports transaction counts by reconciliation status over a
// date window. Zero times mean an unbounded window.
func (s *Storage) Summary(ctx context.Context, from, to time.Time) (*reconcile.Summary, error) {
	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'Reconciled' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'Pending' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'Unmatched' THEN 1 ELSE 0 END), 0)
	FROM bank_transactions WHERE 1=1`
	args := []any{}

	if !from.IsZero() {
		query += " AND date >= ?"
		args = append(args, day(from))
	}
	if !to.IsZero() {
		query += " AND date <= ?"
		args = append(args, day(to))
	}

	var summary reconcile.Summary
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&summary.TotalTransactions, &summary.Reconciled,
		&summary.Pending, &summary.Unmatched); err != nil {
		return nil, err
	}

	if summary.TotalTransactions > 0 {
		summary.ReconciliationRate = float64(summary.Reconciled) / float64(summary.TotalTransactions) * 100
	}
	return &summary, nil
}
