package rowparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMapping = ColumnMapping{
	ProgramCodeColumn: "Program",
	VendorColumn:      "Vendor",
	DescriptionColumn: "Description",
	AmountColumn:      "Amount",
	DateColumn:        "Date",
	PeriodColumn:      "Period",
	InvoiceColumn:     "Invoice",
	ReferenceColumn:   "Reference",
}

func goodRow() Row {
	return Row{
		"Program":     "ABC.1234",
		"Vendor":      "Acme Corp",
		"Description": "Consulting services",
		"Amount":      "$1,250.00",
		"Date":        "1/15/2024",
		"Period":      "2024-01",
		"Invoice":     "INV-100",
		"Reference":   "https://invoices.example.com/INV-100",
	}
}

func TestParseGoodRow(t *testing.T) {
	draft, outcome := Parse(goodRow(), testMapping, "ABC.1234")

	require.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, "Acme Corp", draft.Vendor)
	assert.Equal(t, "Consulting services", draft.Description)
	assert.Equal(t, 1250.0, draft.Amount)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), draft.Date)
	assert.Equal(t, "2024-01", draft.Period)
	assert.Equal(t, "ABC.1234", draft.ProgramCode)
	assert.Equal(t, "INV-100", draft.Invoice)
	assert.Equal(t, "https://invoices.example.com/INV-100", draft.Reference)
	assert.Equal(t, goodRow(), draft.Raw)
}

func TestParseExtractsEmbeddedProgramCode(t *testing.T) {
	row := goodRow()
	row["Program"] = "Charge to abc.1234 phase 2"

	draft, outcome := Parse(row, testMapping, "ABC.1234")

	require.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, "ABC.1234", draft.ProgramCode)
}

func TestParseOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(Row)
		outcome Outcome
	}{
		{
			name:    "missing vendor",
			mutate:  func(r Row) { r["Vendor"] = "" },
			outcome: OutcomeMissingField,
		},
		{
			name:    "missing amount",
			mutate:  func(r Row) { r["Amount"] = "  " },
			outcome: OutcomeMissingField,
		},
		{
			name:    "unparseable amount",
			mutate:  func(r Row) { r["Amount"] = "n/a" },
			outcome: OutcomeMissingField,
		},
		{
			name:    "unparseable date",
			mutate:  func(r Row) { r["Date"] = "sometime soon" },
			outcome: OutcomeBadDate,
		},
		{
			name:    "no program code",
			mutate:  func(r Row) { r["Program"] = "overhead" },
			outcome: OutcomeNoProgramCode,
		},
		{
			name:    "wrong program",
			mutate:  func(r Row) { r["Program"] = "XYZ.9999" },
			outcome: OutcomeProgramMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := goodRow()
			tt.mutate(row)

			draft, outcome := Parse(row, testMapping, "ABC.1234")
			assert.Equal(t, tt.outcome, outcome)
			assert.Nil(t, draft)
		})
	}
}

func TestParseOptionalColumnsAbsent(t *testing.T) {
	mapping := ColumnMapping{
		ProgramCodeColumn: "Program",
		VendorColumn:      "Vendor",
		DescriptionColumn: "Description",
		AmountColumn:      "Amount",
		DateColumn:        "Date",
	}

	draft, outcome := Parse(goodRow(), mapping, "ABC.1234")

	require.Equal(t, OutcomeOK, outcome)
	assert.Empty(t, draft.Period)
	assert.Empty(t, draft.Invoice)
	assert.Empty(t, draft.Reference)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"$1,234.56", 1234.56, true},
		{"1234", 1234, true},
		{"-42.50", -42.50, true},
		{"(500.00)", -500, true},
		{"($1,000.00)", -1000, true},
		{" 99.99 ", 99.99, true},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseAmount(tt.raw)
		require.Equal(t, tt.ok, ok, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%q", tt.raw)
	}
}

func TestMappingValidate(t *testing.T) {
	err := ColumnMapping{VendorColumn: "Vendor"}.Validate()

	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Columns, "program_code_column")
	assert.Contains(t, missing.Columns, "amount_column")
	assert.NotContains(t, missing.Columns, "vendor_column")

	assert.NoError(t, testMapping.Validate())
}
