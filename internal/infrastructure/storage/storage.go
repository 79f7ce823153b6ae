// Package storage provides SQLite-backed access to the documents the
// reconciliation engine works on: bank transactions, invoices,
// direct-debit batches, members, postings and run history.
//
// Amounts are stored as fixed two-decimal strings written through
// decimal.Decimal.StringFixed, which keeps SQL equality comparisons on
// amounts exact. Dates are stored as "2006-01-02" strings.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for the reconciliation
// document model.
type Storage struct {
	db *sql.DB

	// feesAccount is the configured processing-fees account; when empty
	// the account is discovered by name pattern.
	feesAccount string
}

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// SetFeesAccount configures the processing-fees account used for
// settlement fee entries.
func (s *Storage) SetFeesAccount(account string) {
	s.feesAccount = account
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// amt formats a decimal for storage and amount-equality queries.
func amt(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// day formats a date for storage and range queries.
func day(t time.Time) string {
	return t.Format("2006-01-02")
}

// parseAmt converts a stored amount back into a decimal. Stored values
// are always written through amt, so parse failures indicate external
// tampering and map to zero.
func parseAmt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseDay converts a stored date string back to a time.
func parseDay(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
