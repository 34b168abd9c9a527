package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so every repository
// method can run inside or outside a transaction.
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Storage provides SQLite database access for the reconciliation
// engine. It implements the Repository interface.
type Storage struct {
	db *sql.DB
	q  queryer
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

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

	s := &Storage{db: db, q: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Transact runs fn against a transaction-bound repository view. A
// Storage already bound to a transaction reuses it, so multi-step
// operations can compose.
func (s *Storage) Transact(fn func(Repository) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txStore := &Storage{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetStats returns aggregate reconciliation statistics
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{
		StatusCounts: make(map[string]int),
	}

	if err := s.q.QueryRow(`SELECT COUNT(*) FROM import_sessions`).Scan(&stats.TotalSessions); err != nil {
		return nil, err
	}

	rows, err := s.q.Query(`
		SELECT status, COUNT(*), COALESCE(SUM(CASE WHEN status IN ('confirmed','added_to_ledger') THEN amount ELSE 0 END), 0)
		FROM import_transactions
		GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var count int
		var confirmedAmount float64
		if err := rows.Scan(&status, &count, &confirmedAmount); err != nil {
			return nil, err
		}
		stats.StatusCounts[status] = count
		stats.TotalTransactions += count
		stats.ConfirmedAmount += confirmedAmount
	}

	return stats, rows.Err()
}
