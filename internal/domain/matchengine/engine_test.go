package matchengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
)

func testTransaction() Transaction {
	return Transaction{
		ID:          "tx-1",
		Vendor:      "Acme Corp",
		Description: "Consulting services",
		Amount:      1000.00,
		Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func testEntry(id string) LedgerEntry {
	return LedgerEntry{
		ID:            id,
		WBSCode:       "ABC.1234",
		Vendor:        "Acme Corp",
		Description:   "Consulting services",
		PlannedAmount: 1000.00,
		PlannedDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestScorePerfectMatch(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	candidates := engine.Score(testTransaction(), []LedgerEntry{testEntry("e1")}, Exclusions{})

	require.Len(t, candidates, 1)
	assert.InDelta(t, 1.0, candidates[0].Confidence, 1e-9)
	assert.Equal(t, recon.MatchExact, candidates[0].Type)
	assert.NotEmpty(t, candidates[0].Reasons)
}

func TestScoreAmountInsideTolerance(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	tx := testTransaction()
	tx.Amount = 1005.00 // 0.5% off with a 1% tolerance

	candidates := engine.Score(tx, []LedgerEntry{testEntry("e1")}, Exclusions{})

	require.Len(t, candidates, 1)
	// 50 vendor + 30 month + 7.5 amount + 5 description
	assert.InDelta(t, 0.925, candidates[0].Confidence, 1e-9)
	assert.Equal(t, recon.MatchFuzzy, candidates[0].Type)
}

func TestScoreAmountOutsideToleranceEarnsNothing(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	tx := testTransaction()
	tx.Amount = 1100.00

	candidates := engine.Score(tx, []LedgerEntry{testEntry("e1")}, Exclusions{})

	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.85, candidates[0].Confidence, 1e-9)
}

func TestScoreBelowThresholdDropped(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	entry := testEntry("e1")
	entry.Vendor = "Globex LLC"
	entry.Description = "Hardware purchase"

	// Only date and amount can score: 45/100 < 0.7.
	candidates := engine.Score(testTransaction(), []LedgerEntry{entry}, Exclusions{})

	assert.Empty(t, candidates)
}

func TestScoreExclusions(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	withActuals := testEntry("actuals")
	withActuals.HasActuals = true
	entries := []LedgerEntry{withActuals, testEntry("bound"), testEntry("rejected"), testEntry("open")}

	candidates := engine.Score(testTransaction(), entries, Exclusions{
		BoundEntryIDs:    map[string]bool{"bound": true},
		RejectedEntryIDs: map[string]bool{"rejected": true},
	})

	require.Len(t, candidates, 1)
	assert.Equal(t, "open", candidates[0].Entry.ID)
}

func TestScoreSortsByConfidenceDescending(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	weaker := testEntry("weaker")
	weaker.Description = "Something else entirely"
	entries := []LedgerEntry{weaker, testEntry("stronger")}

	candidates := engine.Score(testTransaction(), entries, Exclusions{})

	require.Len(t, candidates, 2)
	assert.Equal(t, "stronger", candidates[0].Entry.ID)
	assert.Equal(t, "weaker", candidates[1].Entry.ID)
	assert.GreaterOrEqual(t, candidates[0].Confidence, candidates[1].Confidence)
}

func TestScorePeriodOverridesDate(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	tx := testTransaction()
	tx.Date = time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	tx.Period = "2024-01"

	candidates := engine.Score(tx, []LedgerEntry{testEntry("e1")}, Exclusions{})

	require.Len(t, candidates, 1)
	assert.InDelta(t, 1.0, candidates[0].Confidence, 1e-9)
}

func TestScoreDifferentMonthLosesDateCredit(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	tx := testTransaction()
	tx.Date = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	candidates := engine.Score(tx, []LedgerEntry{testEntry("e1")}, Exclusions{})

	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.70, candidates[0].Confidence, 1e-9)
}

func TestScoreZeroPlannedAmount(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	entry := testEntry("e1")
	entry.PlannedAmount = 0

	tx := testTransaction()
	tx.Amount = 0
	candidates := engine.Score(tx, []LedgerEntry{entry}, Exclusions{})
	require.Len(t, candidates, 1)
	assert.InDelta(t, 1.0, candidates[0].Confidence, 1e-9)

	tx.Amount = 100
	candidates = engine.Score(tx, []LedgerEntry{entry}, Exclusions{})
	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.85, candidates[0].Confidence, 1e-9)
}

func TestNewEngineFillsZeroConfig(t *testing.T) {
	engine := NewEngine(Config{})

	assert.Equal(t, DefaultConfig(), engine.Config())
}

func TestMatchTypeBands(t *testing.T) {
	tests := []struct {
		confidence float64
		sameMonth  bool
		want       recon.MatchType
	}{
		{0.96, true, recon.MatchExact},
		{0.95, false, recon.MatchExact},
		{0.85, true, recon.MatchFuzzy},
		{0.70, true, recon.MatchPartial},
		{0.50, true, recon.MatchDateBased},
		{0.50, false, recon.MatchWBSBased},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchType(tt.confidence, tt.sameMonth),
			"confidence=%.2f sameMonth=%v", tt.confidence, tt.sameMonth)
	}
}
