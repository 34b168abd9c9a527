package importer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progbudget/import-recon-backend/internal/application/matches"
	"github.com/progbudget/import-recon-backend/internal/domain/matchengine"
	"github.com/progbudget/import-recon-backend/internal/domain/recon"
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

func newTestPipeline(repo storage.Repository) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	matchSvc := matches.NewService(repo, matchengine.NewEngine(matchengine.DefaultConfig()), logger)
	return NewPipeline(repo, matchSvc, logger)
}

func testMapping() rowparse.ColumnMapping {
	return rowparse.ColumnMapping{
		ProgramCodeColumn: "Program",
		VendorColumn:      "Vendor",
		DescriptionColumn: "Description",
		AmountColumn:      "Amount",
		DateColumn:        "Date",
		InvoiceColumn:     "Invoice",
	}
}

func seedProgram(t *testing.T, repo *storage.MockRepository) {
	t.Helper()
	require.NoError(t, repo.CreateProgram(&storage.Program{
		ID:   "prog-1",
		Code: "ABC.1234",
		Name: "Test program",
	}))
}

func seedLedgerEntry(t *testing.T, repo *storage.MockRepository) {
	t.Helper()
	require.NoError(t, repo.CreateLedgerEntry(&storage.LedgerEntry{
		ID:            "entry-1",
		ProgramID:     "prog-1",
		WBSCode:       "ABC.1234.01",
		Vendor:        "Acme Corp",
		Description:   "consulting services",
		PlannedAmount: 1000,
		PlannedDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}))
}

func goodRow(invoice string) rowparse.Row {
	return rowparse.Row{
		"Program":     "ABC.1234",
		"Vendor":      "Acme Corp",
		"Description": "consulting services",
		"Amount":      "1000",
		"Date":        "01/15/2024",
		"Invoice":     invoice,
	}
}

func TestCreateSessionValidatesMapping(t *testing.T) {
	repo := storage.NewMockRepository()
	p := newTestPipeline(repo)
	seedProgram(t, repo)

	_, err := p.CreateSession("prog-1", "export.xlsx", rowparse.ColumnMapping{})
	require.Error(t, err)

	var missing *rowparse.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Columns, "vendor_column")
}

func TestCreateSessionUnknownProgram(t *testing.T) {
	repo := storage.NewMockRepository()
	p := newTestPipeline(repo)

	_, err := p.CreateSession("ghost", "export.xlsx", testMapping())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessFileCountsEveryOutcome(t *testing.T) {
	repo := storage.NewMockRepository()
	p := newTestPipeline(repo)
	seedProgram(t, repo)
	seedLedgerEntry(t, repo)

	sess, err := p.CreateSession("prog-1", "export.xlsx", testMapping())
	require.NoError(t, err)

	rows := []rowparse.Row{
		goodRow("INV-1"),
		{
			// No ledger candidate anywhere near this one
			"Program":     "ABC.1234",
			"Vendor":      "Zed Industries",
			"Description": "misc hardware",
			"Amount":      "555",
			"Date":        "03/02/2024",
			"Invoice":     "INV-2",
		},
		{
			// Missing vendor
			"Program":     "ABC.1234",
			"Description": "orphan row",
			"Amount":      "10",
			"Date":        "01/05/2024",
		},
		{
			// Unparseable date
			"Program":     "ABC.1234",
			"Vendor":      "Acme Corp",
			"Description": "bad date row",
			"Amount":      "10",
			"Date":        "not a date",
		},
		{
			// Different program's row
			"Program":     "XYZ.9999",
			"Vendor":      "Acme Corp",
			"Description": "other program",
			"Amount":      "10",
			"Date":        "01/05/2024",
		},
		{
			// No recognizable code at all
			"Program":     "whatever",
			"Vendor":      "Acme Corp",
			"Description": "no code",
			"Amount":      "10",
			"Date":        "01/05/2024",
		},
	}

	got, err := p.ProcessFile(context.Background(), sess.ID, rows)
	require.NoError(t, err)

	assert.Equal(t, recon.SessionCompleted, got.Status)
	assert.Equal(t, 6, got.TotalRecords)
	assert.Equal(t, 6, got.ProcessedRecords)
	assert.Equal(t, 1, got.MatchedRecords)
	assert.Equal(t, 1, got.UnmatchedRecords)
	assert.Equal(t, 2, got.ErrorRecords)
	assert.Equal(t, 1, got.MismatchRecords)
	assert.Equal(t, 1, got.MissingCodeRecords)
	require.NotNil(t, got.CompletedAt)

	txs, err := repo.ListSessionTransactions(sess.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, recon.TxMatched, txs[0].Status)
	assert.Equal(t, recon.TxUnmatched, txs[1].Status)
	assert.GreaterOrEqual(t, txs[0].MatchConfidence, 0.95)
}

func TestProcessFileSkipsDuplicatesOfCompleted(t *testing.T) {
	repo := storage.NewMockRepository()
	p := newTestPipeline(repo)
	seedProgram(t, repo)

	// Prior confirmed transaction with identical identifying fields
	require.NoError(t, repo.SaveTransaction(&storage.ImportTransaction{
		ID:        "tx-prior",
		SessionID: "sess-old",
		ProgramID: "prog-1",
		Vendor:    "Acme Corp",
		Invoice:   "INV-1",
		Amount:    1000,
		Date:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Status:    recon.TxConfirmed,
	}))

	sess, err := p.CreateSession("prog-1", "export.xlsx", testMapping())
	require.NoError(t, err)

	got, err := p.ProcessFile(context.Background(), sess.ID, []rowparse.Row{goodRow("INV-1")})
	require.NoError(t, err)

	assert.Equal(t, 1, got.SkippedDuplicates)
	txs, err := repo.ListSessionTransactions(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestProcessFileTagsChangedReimports(t *testing.T) {
	repo := storage.NewMockRepository()
	p := newTestPipeline(repo)
	seedProgram(t, repo)

	require.NoError(t, repo.SaveTransaction(&storage.ImportTransaction{
		ID:        "tx-prior",
		SessionID: "sess-old",
		ProgramID: "prog-1",
		Vendor:    "Acme Corp",
		Invoice:   "INV-1",
		Amount:    500, // differs from the re-imported 1000
		Date:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Status:    recon.TxConfirmed,
	}))

	sess, err := p.CreateSession("prog-1", "export.xlsx", testMapping())
	require.NoError(t, err)

	_, err = p.ProcessFile(context.Background(), sess.ID, []rowparse.Row{goodRow("INV-1")})
	require.NoError(t, err)

	txs, err := repo.ListSessionTransactions(sess.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, recon.DupDifferentInfoConfirmed, txs[0].DuplicateType)
	assert.Equal(t, "tx-prior", txs[0].DuplicateOfID)
}

func TestProcessFileRequiresPendingSession(t *testing.T) {
	repo := storage.NewMockRepository()
	p := newTestPipeline(repo)
	seedProgram(t, repo)

	sess, err := p.CreateSession("prog-1", "export.xlsx", testMapping())
	require.NoError(t, err)
	_, err = p.ProcessFile(context.Background(), sess.ID, nil)
	require.NoError(t, err)

	// Already completed
	_, err = p.ProcessFile(context.Background(), sess.ID, nil)
	assert.Error(t, err)
}

func TestProcessFileCancellation(t *testing.T) {
	repo := storage.NewMockRepository()
	p := newTestPipeline(repo)
	seedProgram(t, repo)

	sess, err := p.CreateSession("prog-1", "export.xlsx", testMapping())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := p.ProcessFile(ctx, sess.ID, []rowparse.Row{goodRow("INV-1")})
	require.Error(t, err)
	assert.Equal(t, recon.SessionCancelled, got.Status)
	assert.Equal(t, 0, got.ProcessedRecords)
}

func TestCancelSessionOnlyInFlight(t *testing.T) {
	repo := storage.NewMockRepository()
	p := newTestPipeline(repo)
	seedProgram(t, repo)

	sess, err := p.CreateSession("prog-1", "export.xlsx", testMapping())
	require.NoError(t, err)

	got, err := p.CancelSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, recon.SessionCancelled, got.Status)

	_, err = p.CancelSession(sess.ID)
	assert.Error(t, err)
}
