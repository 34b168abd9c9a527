package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsApplyOnce(t *testing.T) {
	s := newTestStorage(t)

	applied, err := s.getAppliedMigrations()
	require.NoError(t, err)
	require.Len(t, applied, len(allMigrations))
	for _, m := range allMigrations {
		assert.True(t, applied[m.Version], "migration %d not recorded", m.Version)
	}

	// Re-running is a no-op
	require.NoError(t, s.runMigrations())

	applied, err = s.getAppliedMigrations()
	require.NoError(t, err)
	assert.Len(t, applied, len(allMigrations))
}

func TestMigrationsCreateExpectedTables(t *testing.T) {
	s := newTestStorage(t)

	tables := []string{
		"programs",
		"import_sessions",
		"import_transactions",
		"ledger_entries",
		"potential_matches",
		"rejected_matches",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(`
			SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?
		`, table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestSkippedDuplicatesColumnExists(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.db.Exec(`
		UPDATE import_sessions SET skipped_duplicates = 1 WHERE id = 'none'
	`)
	assert.NoError(t, err)
}
