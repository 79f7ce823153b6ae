package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_reconciliation_runs_table",
		Up:      migration002AddReconciliationRunsTable,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version, migration.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	schema := `
	CREATE TABLE bank_transactions (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		deposit TEXT NOT NULL DEFAULT '0.00',
		withdrawal TEXT NOT NULL DEFAULT '0.00',
		description TEXT NOT NULL DEFAULT '',
		bank_account TEXT NOT NULL DEFAULT '',
		reference_number TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'Pending',
		reference_type TEXT NOT NULL DEFAULT '',
		reference_name TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX idx_bank_transactions_status ON bank_transactions(status, bank_account, date);

	CREATE TABLE transaction_comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id TEXT NOT NULL,
		comment TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		FOREIGN KEY (transaction_id) REFERENCES bank_transactions(id)
	);

	CREATE TABLE invoices (
		id TEXT PRIMARY KEY,
		customer TEXT NOT NULL DEFAULT '',
		membership TEXT NOT NULL DEFAULT '',
		grand_total TEXT NOT NULL DEFAULT '0.00',
		outstanding TEXT NOT NULL DEFAULT '0.00',
		status TEXT NOT NULL DEFAULT 'Unpaid',
		due_date TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX idx_invoices_outstanding ON invoices(outstanding, status);

	CREATE TABLE members (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE memberships (
		id TEXT PRIMARY KEY,
		member TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT '',
		payment_date TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (member) REFERENCES members(id)
	);

	CREATE TABLE sepa_mandates (
		mandate_id TEXT PRIMARY KEY,
		member TEXT NOT NULL,
		FOREIGN KEY (member) REFERENCES members(id)
	);

	CREATE TABLE dd_batches (
		id TEXT PRIMARY KEY,
		collection_date TEXT NOT NULL,
		total_amount TEXT NOT NULL DEFAULT '0.00',
		status TEXT NOT NULL DEFAULT 'Draft'
	);

	CREATE TABLE dd_batch_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch TEXT NOT NULL,
		invoice TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '0.00',
		party_name TEXT NOT NULL DEFAULT '',
		mandate_reference TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (batch) REFERENCES dd_batches(id)
	);
	CREATE INDEX idx_dd_batch_lines_amount ON dd_batch_lines(amount);

	CREATE TABLE postings (
		id TEXT PRIMARY KEY,
		invoice TEXT NOT NULL DEFAULT '',
		batch TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL DEFAULT '0.00',
		posting_date TEXT NOT NULL,
		reference_no TEXT NOT NULL DEFAULT '',
		mode_of_payment TEXT NOT NULL DEFAULT '',
		source_account TEXT NOT NULL DEFAULT '',
		bank_transaction TEXT NOT NULL DEFAULT '',
		provider_payment_id TEXT NOT NULL DEFAULT '',
		settlement_id TEXT NOT NULL DEFAULT '',
		docstatus INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX idx_postings_provider_payment ON postings(provider_payment_id, docstatus);

	CREATE TABLE balancing_entries (
		id TEXT PRIMARY KEY,
		debit_account TEXT NOT NULL,
		credit_account TEXT NOT NULL,
		amount TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		docstatus INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE accounts (
		name TEXT PRIMARY KEY,
		account_name TEXT NOT NULL DEFAULT '',
		account_type TEXT NOT NULL DEFAULT '',
		is_group INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := tx.Exec(schema)
	return err
}

func migration002AddReconciliationRunsTable(tx *sql.Tx) error {
	schema := `
	CREATE TABLE reconciliation_runs (
		run_id TEXT PRIMARY KEY,
		bank_account TEXT NOT NULL DEFAULT '',
		from_date TEXT NOT NULL DEFAULT '',
		to_date TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL DEFAULT '',
		total INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		unmatched INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running'
	);
	`
	_, err := tx.Exec(schema)
	return err
}
