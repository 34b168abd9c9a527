// Package duplicate classifies a newly parsed row against the prior
// transactions that share its identifying keys.
//
// The classifier is an ordered rule list. Rule order is load-bearing:
// when several conditions hold at once, the first rule that fires
// decides the tag. Replaced transactions are invisible to every rule.
package duplicate

import (
	"math"
	"time"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
)

// amountEpsilon absorbs float noise when comparing imported amounts.
const amountEpsilon = 0.005

// Candidate is the newly parsed row under classification.
type Candidate struct {
	Vendor  string
	Invoice string
	Amount  float64
	Date    time.Time
}

// Prior is the minimal view of an already-persisted transaction the
// rules need.
type Prior struct {
	ID      string
	Vendor  string
	Invoice string
	Amount  float64
	Date    time.Time
	Status  recon.TransactionStatus
}

// Decision is the classifier's verdict. Skip means the row must not be
// imported at all (a true duplicate of a completed transaction).
type Decision struct {
	Skip          bool
	Type          recon.DuplicateType
	DuplicateOfID string
}

// rule inspects the candidate against the filtered priors and either
// fires with a decision or passes.
type rule struct {
	name  string
	apply func(c Candidate, priors []Prior) (Decision, bool)
}

// rules in precedence order. See package comment.
var rules = []rule{
	{name: "skip_exact_completed", apply: skipExactCompleted},
	{name: "exact_duplicate", apply: exactDuplicate},
	{name: "same_invoice_different_info", apply: sameInvoiceDifferentInfo},
	{name: "no_invoice_potential", apply: noInvoicePotential},
	{name: "multiple_potential", apply: multiplePotential},
}

// Classify runs the candidate through the rule list. Priors may contain
// transactions in any status; replaced ones are dropped before any rule
// sees them.
func Classify(c Candidate, priors []Prior) Decision {
	live := make([]Prior, 0, len(priors))
	for _, p := range priors {
		if p.Status == recon.TxReplaced {
			continue
		}
		live = append(live, p)
	}

	for _, r := range rules {
		if d, ok := r.apply(c, live); ok {
			return d
		}
	}
	return Decision{Type: recon.DupNone}
}

// skipExactCompleted: an exact match (vendor, invoice, amount, date)
// already sits in a completed terminal state, so the new row is dropped
// entirely.
func skipExactCompleted(c Candidate, priors []Prior) (Decision, bool) {
	if c.Invoice == "" {
		return Decision{}, false
	}
	for _, p := range priors {
		if isExactMatch(c, p) && p.Status.IsCompleted() {
			return Decision{Skip: true, Type: recon.DupExact, DuplicateOfID: p.ID}, true
		}
	}
	return Decision{}, false
}

// exactDuplicate: an exact match exists but has not completed yet. The
// row is imported and tagged so an operator can resolve the pair. Two
// identical rows in one file therefore both persist until one of them
// is confirmed; only then does a later import skip.
func exactDuplicate(c Candidate, priors []Prior) (Decision, bool) {
	if c.Invoice == "" {
		return Decision{}, false
	}
	for _, p := range priors {
		if isExactMatch(c, p) {
			return Decision{Type: recon.DupExact, DuplicateOfID: p.ID}, true
		}
	}
	return Decision{}, false
}

// sameInvoiceDifferentInfo: same vendor+invoice but a different amount
// or date. The tag depends on what happened to the prior transaction.
func sameInvoiceDifferentInfo(c Candidate, priors []Prior) (Decision, bool) {
	if c.Invoice == "" {
		return Decision{}, false
	}

	var confirmed, rejected, pending *Prior
	for i := range priors {
		p := &priors[i]
		if !sameVendor(c.Vendor, p.Vendor) || c.Invoice != p.Invoice {
			continue
		}
		switch {
		case p.Status.IsCompleted():
			if confirmed == nil {
				confirmed = p
			}
		case p.Status == recon.TxRejected:
			if rejected == nil {
				rejected = p
			}
		default:
			if pending == nil {
				pending = p
			}
		}
	}

	switch {
	case confirmed != nil:
		return Decision{Type: recon.DupDifferentInfoConfirmed, DuplicateOfID: confirmed.ID}, true
	case rejected != nil:
		return Decision{Type: recon.DupOriginalRejected, DuplicateOfID: rejected.ID}, true
	case pending != nil:
		return Decision{Type: recon.DupDifferentInfoPending, DuplicateOfID: pending.ID}, true
	}
	return Decision{}, false
}

// noInvoicePotential: with no invoice number the fallback key is
// vendor+amount+date.
func noInvoicePotential(c Candidate, priors []Prior) (Decision, bool) {
	if c.Invoice != "" {
		return Decision{}, false
	}
	for _, p := range priors {
		if sameVendor(c.Vendor, p.Vendor) && sameAmount(c.Amount, p.Amount) && sameDay(c.Date, p.Date) {
			return Decision{Type: recon.DupNoInvoicePotential, DuplicateOfID: p.ID}, true
		}
	}
	return Decision{}, false
}

// multiplePotential: no specific tag fired, but more than one sibling
// shares the identifying key.
func multiplePotential(c Candidate, priors []Prior) (Decision, bool) {
	count := 0
	for _, p := range priors {
		if sharesKey(c, p) {
			count++
		}
	}
	if count > 1 {
		return Decision{Type: recon.DupMultiplePotential}, true
	}
	return Decision{}, false
}

func isExactMatch(c Candidate, p Prior) bool {
	return sameVendor(c.Vendor, p.Vendor) &&
		c.Invoice == p.Invoice &&
		sameAmount(c.Amount, p.Amount) &&
		sameDay(c.Date, p.Date)
}

func sharesKey(c Candidate, p Prior) bool {
	if c.Invoice != "" {
		return sameVendor(c.Vendor, p.Vendor) && c.Invoice == p.Invoice
	}
	return sameVendor(c.Vendor, p.Vendor) && sameAmount(c.Amount, p.Amount) && sameDay(c.Date, p.Date)
}

func sameVendor(a, b string) bool {
	return normalizeVendor(a) == normalizeVendor(b)
}

func normalizeVendor(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' || r == '\t' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}

func sameAmount(a, b float64) bool {
	return math.Abs(a-b) < amountEpsilon
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
