package matchengine

import (
	"time"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
)

// Config holds the scoring tolerances.
type Config struct {
	// AmountTolerance is the maximum relative amount difference that
	// still earns partial credit. 0.01 means 1%.
	AmountTolerance float64
	// MatchThreshold is the minimum confidence for a candidate to be
	// kept. Confidence is normalized to [0,1].
	MatchThreshold float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		AmountTolerance: 0.01,
		MatchThreshold:  0.7,
	}
}

// Transaction is the scored side of a match: one imported row.
type Transaction struct {
	ID          string
	Vendor      string
	Description string
	Amount      float64
	Date        time.Time
	Period      string // YYYY-MM, may be empty
}

// LedgerEntry is the match target: one planned budget line.
type LedgerEntry struct {
	ID            string
	WBSCode       string
	Vendor        string
	Description   string
	PlannedAmount float64
	PlannedDate   time.Time
	HasActuals    bool
}

// Exclusions carries the two repository-backed exclusion sets the
// engine consults before scoring.
type Exclusions struct {
	// BoundEntryIDs are ledger entries already bound to another
	// confirmed or added transaction.
	BoundEntryIDs map[string]bool
	// RejectedEntryIDs are entries an operator rejected for this
	// specific transaction.
	RejectedEntryIDs map[string]bool
}

// Candidate is one scored ledger entry at or above the threshold.
type Candidate struct {
	Entry      LedgerEntry
	Confidence float64
	Type       recon.MatchType
	Reasons    []string
}
