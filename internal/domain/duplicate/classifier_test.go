package duplicate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/progbudget/import-recon-backend/internal/domain/recon"
)

var jan15 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func candidate() Candidate {
	return Candidate{
		Vendor:  "Acme Corp",
		Invoice: "INV-100",
		Amount:  1250.00,
		Date:    jan15,
	}
}

func prior(id string, status recon.TransactionStatus) Prior {
	return Prior{
		ID:      id,
		Vendor:  "Acme Corp",
		Invoice: "INV-100",
		Amount:  1250.00,
		Date:    jan15,
		Status:  status,
	}
}

func TestClassifyNoPriors(t *testing.T) {
	d := Classify(candidate(), nil)

	assert.False(t, d.Skip)
	assert.Equal(t, recon.DupNone, d.Type)
	assert.Empty(t, d.DuplicateOfID)
}

func TestClassifySkipsExactCompleted(t *testing.T) {
	d := Classify(candidate(), []Prior{prior("p1", recon.TxConfirmed)})

	assert.True(t, d.Skip)
	assert.Equal(t, recon.DupExact, d.Type)
	assert.Equal(t, "p1", d.DuplicateOfID)
}

func TestClassifyExactPendingIsImported(t *testing.T) {
	d := Classify(candidate(), []Prior{prior("p1", recon.TxUnmatched)})

	assert.False(t, d.Skip)
	assert.Equal(t, recon.DupExact, d.Type)
	assert.Equal(t, "p1", d.DuplicateOfID)
}

func TestClassifySameInvoiceDifferentInfo(t *testing.T) {
	changed := candidate()
	changed.Amount = 1300.00

	tests := []struct {
		name   string
		status recon.TransactionStatus
		want   recon.DuplicateType
	}{
		{"prior confirmed", recon.TxConfirmed, recon.DupDifferentInfoConfirmed},
		{"prior added to ledger", recon.TxAddedToLedger, recon.DupDifferentInfoConfirmed},
		{"prior rejected", recon.TxRejected, recon.DupOriginalRejected},
		{"prior still pending", recon.TxMatched, recon.DupDifferentInfoPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(changed, []Prior{prior("p1", tt.status)})

			assert.False(t, d.Skip)
			assert.Equal(t, tt.want, d.Type)
			assert.Equal(t, "p1", d.DuplicateOfID)
		})
	}
}

func TestClassifyConfirmedOutranksRejected(t *testing.T) {
	changed := candidate()
	changed.Amount = 1300.00

	d := Classify(changed, []Prior{
		prior("rej", recon.TxRejected),
		prior("conf", recon.TxConfirmed),
	})

	assert.Equal(t, recon.DupDifferentInfoConfirmed, d.Type)
	assert.Equal(t, "conf", d.DuplicateOfID)
}

func TestClassifyNoInvoiceFallbackKey(t *testing.T) {
	c := candidate()
	c.Invoice = ""
	p := prior("p1", recon.TxUnmatched)
	p.Invoice = ""

	d := Classify(c, []Prior{p})

	assert.False(t, d.Skip)
	assert.Equal(t, recon.DupNoInvoicePotential, d.Type)
	assert.Equal(t, "p1", d.DuplicateOfID)
}

func TestClassifyNoInvoiceDifferentDayIsClean(t *testing.T) {
	c := candidate()
	c.Invoice = ""
	p := prior("p1", recon.TxUnmatched)
	p.Invoice = ""
	p.Date = jan15.AddDate(0, 0, 1)

	d := Classify(c, []Prior{p})

	assert.Equal(t, recon.DupNone, d.Type)
}

func TestClassifyIgnoresReplacedPriors(t *testing.T) {
	d := Classify(candidate(), []Prior{prior("p1", recon.TxReplaced)})

	assert.False(t, d.Skip)
	assert.Equal(t, recon.DupNone, d.Type)
}

func TestClassifyVendorComparisonIsNormalized(t *testing.T) {
	c := candidate()
	c.Vendor = "ACME CORP"

	d := Classify(c, []Prior{prior("p1", recon.TxUnmatched)})

	assert.Equal(t, recon.DupExact, d.Type)
}

func TestClassifyAmountEpsilon(t *testing.T) {
	c := candidate()
	c.Amount = 1250.004

	d := Classify(c, []Prior{prior("p1", recon.TxConfirmed)})

	assert.True(t, d.Skip)
	assert.Equal(t, recon.DupExact, d.Type)
}
