package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProgram(t *testing.T, s Repository, id, code string) {
	t.Helper()
	require.NoError(t, s.CreateProgram(&Program{ID: id, Code: code, Name: code + " program"}))
}

func seedSession(t *testing.T, s Repository, id, programID string) *ImportSession {
	t.Helper()
	sess := &ImportSession{
		ID:        id,
		ProgramID: programID,
		Filename:  "export.xlsx",
		Status:    recon.SessionPending,
		Mapping: rowparse.ColumnMapping{
			ProgramCodeColumn: "A",
			VendorColumn:      "B",
			DescriptionColumn: "C",
			AmountColumn:      "D",
			DateColumn:        "E",
		},
	}
	require.NoError(t, s.CreateSession(sess))
	return sess
}

func TestProgramCRUD(t *testing.T) {
	s := newTestStorage(t)

	seedProgram(t, s, "prog-1", "ABC.1234")

	p, err := s.GetProgram("prog-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC.1234", p.Code)
	assert.False(t, p.CreatedAt.IsZero())

	_, err = s.GetProgram("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	seedProgram(t, s, "prog-2", "AAA.0001")
	programs, err := s.ListPrograms()
	require.NoError(t, err)
	require.Len(t, programs, 2)
	assert.Equal(t, "AAA.0001", programs[0].Code)
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")
	sess := seedSession(t, s, "sess-1", "prog-1")

	got, err := s.GetSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, recon.SessionPending, got.Status)
	assert.Equal(t, "B", got.Mapping.VendorColumn)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.ReplacedBySessionID)

	now := time.Now().UTC().Truncate(time.Second)
	sess.Status = recon.SessionCompleted
	sess.TotalRecords = 10
	sess.MatchedRecords = 7
	sess.SkippedDuplicates = 2
	sess.CompletedAt = &now
	require.NoError(t, s.UpdateSession(sess))

	got, err = s.GetSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, recon.SessionCompleted, got.Status)
	assert.Equal(t, 10, got.TotalRecords)
	assert.Equal(t, 2, got.SkippedDuplicates)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(now))
}

func TestUpdateSessionNotFound(t *testing.T) {
	s := newTestStorage(t)
	err := s.UpdateSession(&ImportSession{ID: "ghost", Status: recon.SessionFailed})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")

	older := seedSession(t, s, "sess-old", "prog-1")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	// CreateSession already persisted a timestamp; rewrite via a fresh insert
	require.NoError(t, s.DeleteSession("sess-old"))
	require.NoError(t, s.CreateSession(older))
	seedSession(t, s, "sess-new", "prog-1")

	sessions, err := s.ListSessions("prog-1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "sess-new", sessions[0].ID)

	sessions, err = s.ListSessions("prog-1", 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestDeleteSessionCascadesTransactions(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")
	seedSession(t, s, "sess-1", "prog-1")

	require.NoError(t, s.SaveTransaction(&ImportTransaction{
		ID:        "tx-1",
		SessionID: "sess-1",
		ProgramID: "prog-1",
		Vendor:    "Acme",
		Amount:    100,
		Date:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:    recon.TxUnmatched,
	}))

	require.NoError(t, s.DeleteSession("sess-1"))

	_, err := s.GetTransaction("tx-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveTransactionUpsert(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")
	seedSession(t, s, "sess-1", "prog-1")

	tx := &ImportTransaction{
		ID:        "tx-1",
		SessionID: "sess-1",
		ProgramID: "prog-1",
		Vendor:    "Acme Corp",
		Amount:    2500.50,
		Date:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Period:    "2024-03",
		Invoice:   "INV-100",
		Status:    recon.TxUnmatched,
	}
	require.NoError(t, s.SaveTransaction(tx))

	tx.Status = recon.TxMatched
	tx.MatchedEntryID = ""
	tx.MatchConfidence = 0.91
	require.NoError(t, s.SaveTransaction(tx))

	got, err := s.GetTransaction("tx-1")
	require.NoError(t, err)
	assert.Equal(t, recon.TxMatched, got.Status)
	assert.InDelta(t, 0.91, got.MatchConfidence, 1e-9)
	assert.Empty(t, got.MatchedEntryID)

	txs, err := s.ListSessionTransactions("sess-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestBoundLedgerEntryIDs(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")
	seedSession(t, s, "sess-1", "prog-1")

	mk := func(id string, status recon.TransactionStatus, entryID string) {
		require.NoError(t, s.SaveTransaction(&ImportTransaction{
			ID: id, SessionID: "sess-1", ProgramID: "prog-1",
			Vendor: "Acme", Amount: 10,
			Date:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Status:         status,
			MatchedEntryID: entryID,
		}))
	}
	mk("tx-confirmed", recon.TxConfirmed, "entry-1")
	mk("tx-added", recon.TxAddedToLedger, "entry-2")
	mk("tx-matched", recon.TxMatched, "entry-3")
	mk("tx-unbound", recon.TxConfirmed, "")

	bound, err := s.BoundLedgerEntryIDs("prog-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"entry-1": "tx-confirmed",
		"entry-2": "tx-added",
	}, bound)
}

func TestLedgerActualsLifecycle(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")

	entry := &LedgerEntry{
		ID:            "entry-1",
		ProgramID:     "prog-1",
		WBSCode:       "ABC.1234.01",
		Vendor:        "Acme Corp",
		PlannedAmount: 2500,
		PlannedDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateLedgerEntry(entry))

	got, err := s.GetLedgerEntry("entry-1")
	require.NoError(t, err)
	assert.False(t, got.HasActuals())

	actualDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetLedgerActuals("entry-1", 2500.50, actualDate, "https://example.com/inv", "INV-100"))

	got, err = s.GetLedgerEntry("entry-1")
	require.NoError(t, err)
	require.True(t, got.HasActuals())
	assert.InDelta(t, 2500.50, *got.ActualAmount, 1e-9)
	assert.True(t, got.ActualDate.Equal(actualDate))
	assert.Equal(t, "INV-100", got.InvoiceLinkText)

	require.NoError(t, s.ClearLedgerActuals("entry-1"))
	got, err = s.GetLedgerEntry("entry-1")
	require.NoError(t, err)
	assert.False(t, got.HasActuals())
	assert.Empty(t, got.InvoiceLinkURL)

	assert.ErrorIs(t, s.SetLedgerActuals("ghost", 1, actualDate, "", ""), ErrNotFound)
}

func TestAppendLedgerNote(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")
	require.NoError(t, s.CreateLedgerEntry(&LedgerEntry{
		ID: "entry-1", ProgramID: "prog-1", WBSCode: "ABC.1234.01",
		PlannedAmount: 100, PlannedDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, s.AppendLedgerNote("entry-1", "first note"))
	require.NoError(t, s.AppendLedgerNote("entry-1", "second note"))

	got, err := s.GetLedgerEntry("entry-1")
	require.NoError(t, err)
	assert.Equal(t, "first note\nsecond note", got.Notes)
}

func TestPotentialMatchUpsertIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")
	seedSession(t, s, "sess-1", "prog-1")
	require.NoError(t, s.SaveTransaction(&ImportTransaction{
		ID: "tx-1", SessionID: "sess-1", ProgramID: "prog-1",
		Vendor: "Acme", Amount: 10,
		Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status: recon.TxUnmatched,
	}))
	require.NoError(t, s.CreateLedgerEntry(&LedgerEntry{
		ID: "entry-1", ProgramID: "prog-1", WBSCode: "ABC.1234.01",
		PlannedAmount: 10, PlannedDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	pm := &PotentialMatch{
		TransactionID: "tx-1",
		LedgerEntryID: "entry-1",
		Confidence:    0.85,
		MatchType:     recon.MatchFuzzy,
		Reasons:       []string{"vendor similarity 1.00"},
	}
	require.NoError(t, s.UpsertPotentialMatch(pm))

	pm.Confidence = 0.97
	pm.MatchType = recon.MatchExact
	pm.Reasons = []string{"vendor similarity 1.00", "same calendar month"}
	require.NoError(t, s.UpsertPotentialMatch(pm))

	matches, err := s.ListPotentialMatches("tx-1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0.97, matches[0].Confidence, 1e-9)
	assert.Equal(t, recon.MatchExact, matches[0].MatchType)
	assert.Len(t, matches[0].Reasons, 2)
}

func TestPotentialMatchDeleteByEntry(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")
	seedSession(t, s, "sess-1", "prog-1")
	for _, txID := range []string{"tx-1", "tx-2"} {
		require.NoError(t, s.SaveTransaction(&ImportTransaction{
			ID: txID, SessionID: "sess-1", ProgramID: "prog-1",
			Vendor: "Acme", Amount: 10,
			Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Status: recon.TxUnmatched,
		}))
	}
	require.NoError(t, s.CreateLedgerEntry(&LedgerEntry{
		ID: "entry-1", ProgramID: "prog-1", WBSCode: "ABC.1234.01",
		PlannedAmount: 10, PlannedDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	for _, txID := range []string{"tx-1", "tx-2"} {
		require.NoError(t, s.UpsertPotentialMatch(&PotentialMatch{
			TransactionID: txID, LedgerEntryID: "entry-1",
			Confidence: 0.8, MatchType: recon.MatchFuzzy,
		}))
	}

	require.NoError(t, s.DeletePotentialMatchesByEntry("entry-1"))

	for _, txID := range []string{"tx-1", "tx-2"} {
		matches, err := s.ListPotentialMatches(txID)
		require.NoError(t, err)
		assert.Empty(t, matches)
	}
}

func TestRejectedMatches(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")
	seedSession(t, s, "sess-1", "prog-1")
	require.NoError(t, s.SaveTransaction(&ImportTransaction{
		ID: "tx-1", SessionID: "sess-1", ProgramID: "prog-1",
		Vendor: "Acme", Amount: 10,
		Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status: recon.TxUnmatched,
	}))
	require.NoError(t, s.CreateLedgerEntry(&LedgerEntry{
		ID: "entry-1", ProgramID: "prog-1", WBSCode: "ABC.1234.01",
		PlannedAmount: 10, PlannedDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, s.CreateRejectedMatch("tx-1", "entry-1"))
	// double rejection is a no-op
	require.NoError(t, s.CreateRejectedMatch("tx-1", "entry-1"))

	ids, err := s.ListRejectedEntryIDs("tx-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"entry-1"}, ids)

	require.NoError(t, s.DeleteRejectedMatch("tx-1", "entry-1"))
	ids, err = s.ListRejectedEntryIDs("tx-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTransactRollsBackOnError(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")

	boom := errors.New("boom")
	err := s.Transact(func(r Repository) error {
		if err := r.CreateLedgerEntry(&LedgerEntry{
			ID: "entry-1", ProgramID: "prog-1", WBSCode: "ABC.1234.01",
			PlannedAmount: 10, PlannedDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetLedgerEntry("entry-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactCommits(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")

	err := s.Transact(func(r Repository) error {
		return r.CreateLedgerEntry(&LedgerEntry{
			ID: "entry-1", ProgramID: "prog-1", WBSCode: "ABC.1234.01",
			PlannedAmount: 10, PlannedDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	})
	require.NoError(t, err)

	_, err = s.GetLedgerEntry("entry-1")
	assert.NoError(t, err)
}

func TestGetStats(t *testing.T) {
	s := newTestStorage(t)
	seedProgram(t, s, "prog-1", "ABC.1234")
	seedSession(t, s, "sess-1", "prog-1")

	mk := func(id string, status recon.TransactionStatus, amount float64) {
		require.NoError(t, s.SaveTransaction(&ImportTransaction{
			ID: id, SessionID: "sess-1", ProgramID: "prog-1",
			Vendor: "Acme", Amount: amount,
			Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Status: status,
		}))
	}
	mk("tx-1", recon.TxConfirmed, 100)
	mk("tx-2", recon.TxAddedToLedger, 50)
	mk("tx-3", recon.TxUnmatched, 999)

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSessions)
	assert.Equal(t, 3, stats.TotalTransactions)
	assert.Equal(t, 1, stats.StatusCounts["confirmed"])
	assert.Equal(t, 1, stats.StatusCounts["unmatched"])
	assert.InDelta(t, 150, stats.ConfirmedAmount, 1e-9)
}
