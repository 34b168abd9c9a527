package storage

import (
	"database/sql"
	"fmt"
	"log"
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
		Name:    "add_match_tables",
		Up:      migration002AddMatchTables,
	},
	{
		Version: 3,
		Name:    "add_session_skip_counters",
		Up:      migration003AddSessionSkipCounters,
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
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

// migration001InitialSchema creates programs, sessions, transactions
// and ledger entries.
func migration001InitialSchema(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS programs (
			id TEXT PRIMARY KEY,
			code TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS import_sessions (
			id TEXT PRIMARY KEY,
			program_id TEXT NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			mapping_json TEXT NOT NULL DEFAULT '{}',
			total_records INTEGER DEFAULT 0,
			processed_records INTEGER DEFAULT 0,
			matched_records INTEGER DEFAULT 0,
			unmatched_records INTEGER DEFAULT 0,
			error_records INTEGER DEFAULT 0,
			mismatch_records INTEGER DEFAULT 0,
			missing_code_records INTEGER DEFAULT 0,
			replaced_by_session_id TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP,
			FOREIGN KEY (program_id) REFERENCES programs(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_import_sessions_program
		 ON import_sessions(program_id)`,

		`CREATE INDEX IF NOT EXISTS idx_import_sessions_status
		 ON import_sessions(status)`,

		`CREATE TABLE IF NOT EXISTS import_transactions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			program_id TEXT NOT NULL,
			vendor TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			amount REAL NOT NULL,
			transaction_date TIMESTAMP NOT NULL,
			period TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			subcategory TEXT NOT NULL DEFAULT '',
			invoice TEXT NOT NULL DEFAULT '',
			reference TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			raw_json TEXT NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'unmatched',
			duplicate_type TEXT NOT NULL DEFAULT 'none',
			duplicate_of_id TEXT,
			matched_ledger_entry_id TEXT,
			match_confidence REAL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES import_sessions(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_import_transactions_session
		 ON import_transactions(session_id)`,

		`CREATE INDEX IF NOT EXISTS idx_import_transactions_program
		 ON import_transactions(program_id)`,

		`CREATE INDEX IF NOT EXISTS idx_import_transactions_status
		 ON import_transactions(status)`,

		`CREATE INDEX IF NOT EXISTS idx_import_transactions_vendor_invoice
		 ON import_transactions(vendor, invoice)`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id TEXT PRIMARY KEY,
			program_id TEXT NOT NULL,
			wbs_code TEXT NOT NULL DEFAULT '',
			vendor TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			planned_amount REAL NOT NULL DEFAULT 0,
			planned_date TIMESTAMP NOT NULL,
			actual_amount REAL,
			actual_date TIMESTAMP,
			invoice_link_url TEXT NOT NULL DEFAULT '',
			invoice_link_text TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (program_id) REFERENCES programs(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_program
		 ON ledger_entries(program_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002AddMatchTables creates potential and rejected match rows.
// The UNIQUE pair constraint is what makes candidate synchronization
// idempotent at the schema level.
func migration002AddMatchTables(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS potential_matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id TEXT NOT NULL,
			ledger_entry_id TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			match_type TEXT NOT NULL DEFAULT '',
			reasons_json TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (transaction_id, ledger_entry_id),
			FOREIGN KEY (transaction_id) REFERENCES import_transactions(id) ON DELETE CASCADE,
			FOREIGN KEY (ledger_entry_id) REFERENCES ledger_entries(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_potential_matches_transaction
		 ON potential_matches(transaction_id)`,

		`CREATE INDEX IF NOT EXISTS idx_potential_matches_entry
		 ON potential_matches(ledger_entry_id)`,

		`CREATE TABLE IF NOT EXISTS rejected_matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id TEXT NOT NULL,
			ledger_entry_id TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (transaction_id, ledger_entry_id),
			FOREIGN KEY (transaction_id) REFERENCES import_transactions(id) ON DELETE CASCADE,
			FOREIGN KEY (ledger_entry_id) REFERENCES ledger_entries(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_rejected_matches_transaction
		 ON rejected_matches(transaction_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create match tables: %w", err)
		}
	}

	return nil
}

// migration003AddSessionSkipCounters adds the skipped-duplicate counter
// so operators can see how many rows were true duplicates of completed
// transactions.
func migration003AddSessionSkipCounters(db *sql.Tx) error {
	query := `ALTER TABLE import_sessions ADD COLUMN skipped_duplicates INTEGER DEFAULT 0`

	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to add skipped_duplicates column: %w", err)
	}

	return nil
}
