// Package matchengine scores an imported transaction against the
// eligible ledger entries of its program and returns ranked candidates.
//
// The engine is pure: callers supply the ledger slice and the two
// exclusion sets, and scoring has no side effects. Weights sum to 100
// and the total is normalized to [0,1]:
//
//	vendor name similarity  50  (token-set Jaccard)
//	date proximity          30  (same calendar month, binary)
//	amount proximity        15  (linear inside the tolerance)
//	description similarity   5  (token-set Jaccard)
package matchengine

import (
	"fmt"
	"math"
	"sort"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
)

const (
	weightVendor      = 50.0
	weightDate        = 30.0
	weightAmount      = 15.0
	weightDescription = 5.0
)

// Engine scores transactions against ledger entries.
type Engine struct {
	config Config
}

// NewEngine creates an engine with the given config. Zero tolerances
// fall back to the defaults.
func NewEngine(config Config) *Engine {
	def := DefaultConfig()
	if config.AmountTolerance == 0 {
		config.AmountTolerance = def.AmountTolerance
	}
	if config.MatchThreshold == 0 {
		config.MatchThreshold = def.MatchThreshold
	}
	return &Engine{config: config}
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Score ranks every eligible ledger entry against the transaction.
// Entries with actuals, entries bound elsewhere, and rejected pairs are
// excluded before scoring. The result is sorted by confidence
// descending; ties keep input order.
func (e *Engine) Score(tx Transaction, entries []LedgerEntry, excl Exclusions) []Candidate {
	var candidates []Candidate

	for _, entry := range entries {
		if entry.HasActuals {
			continue
		}
		if excl.BoundEntryIDs[entry.ID] {
			continue
		}
		if excl.RejectedEntryIDs[entry.ID] {
			continue
		}

		c := e.score(tx, entry)
		if c.Confidence >= e.config.MatchThreshold {
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return candidates
}

// score computes the weighted confidence for one pair.
func (e *Engine) score(tx Transaction, entry LedgerEntry) Candidate {
	var reasons []string

	vendorSim := JaccardSimilarity(tx.Vendor, entry.Vendor)
	vendorScore := weightVendor * vendorSim
	if vendorSim > 0 {
		reasons = append(reasons, fmt.Sprintf("vendor similarity %.2f", vendorSim))
	}

	sameMonth := e.sameMonth(tx, entry)
	dateScore := 0.0
	if sameMonth {
		dateScore = weightDate
		reasons = append(reasons, "same calendar month")
	}

	amountScore := e.amountScore(tx.Amount, entry.PlannedAmount)
	if amountScore > 0 {
		reasons = append(reasons, fmt.Sprintf("amount within %.1f%% tolerance", e.config.AmountTolerance*100))
	}

	descSim := JaccardSimilarity(tx.Description, entry.Description)
	descScore := weightDescription * descSim
	if descSim > 0 {
		reasons = append(reasons, fmt.Sprintf("description similarity %.2f", descSim))
	}

	confidence := (vendorScore + dateScore + amountScore + descScore) / 100.0
	if confidence > 1 {
		confidence = 1
	}

	return Candidate{
		Entry:      entry,
		Confidence: confidence,
		Type:       matchType(confidence, sameMonth),
		Reasons:    reasons,
	}
}

// amountScore gives full credit at zero difference, scaling linearly to
// zero as the relative difference reaches the tolerance.
func (e *Engine) amountScore(amount, planned float64) float64 {
	if planned == 0 {
		if amount == 0 {
			return weightAmount
		}
		return 0
	}

	pctDiff := math.Abs(amount-planned) / math.Abs(planned)
	if pctDiff >= e.config.AmountTolerance {
		return 0
	}
	return weightAmount * (1 - pctDiff/e.config.AmountTolerance)
}

// sameMonth checks the transaction's period first, then its own date,
// against the entry's planned date.
func (e *Engine) sameMonth(tx Transaction, entry LedgerEntry) bool {
	entryPeriod := entry.PlannedDate.Format("2006-01")
	if tx.Period != "" {
		return tx.Period == entryPeriod
	}
	return tx.Date.Format("2006-01") == entryPeriod
}

// matchType derives the coarse explanatory label from confidence bands,
// falling back to a date or WBS hint below the bands. The label never
// affects candidate inclusion.
func matchType(confidence float64, sameMonth bool) recon.MatchType {
	switch {
	case confidence >= 0.95:
		return recon.MatchExact
	case confidence >= 0.8:
		return recon.MatchFuzzy
	case confidence >= 0.6:
		return recon.MatchPartial
	case sameMonth:
		return recon.MatchDateBased
	default:
		return recon.MatchWBSBased
	}
}
