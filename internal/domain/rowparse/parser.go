// Package rowparse turns raw spreadsheet rows into normalized
// transaction drafts using a per-session column mapping.
//
// Parsing never returns an error for a bad row: every rejection is an
// Outcome the import pipeline aggregates into session counters. Only a
// misconfigured mapping is an error, caught up front by Validate.
package rowparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// programCodePattern matches three letters, a period, four digits
// (e.g. "ABC.1234") anywhere inside the program-code cell.
var programCodePattern = regexp.MustCompile(`[A-Za-z]{3}\.\d{4}`)

// Outcome says what happened to a row.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeMissingField
	OutcomeBadDate
	OutcomeNoProgramCode
	OutcomeProgramMismatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMissingField:
		return "missing_field"
	case OutcomeBadDate:
		return "bad_date"
	case OutcomeNoProgramCode:
		return "no_program_code"
	case OutcomeProgramMismatch:
		return "program_mismatch"
	}
	return "unknown"
}

// Draft is a normalized transaction extracted from one row. It carries
// everything the classifier and storage need; persistence identifiers
// are assigned later by the pipeline.
type Draft struct {
	Vendor      string
	Description string
	Amount      float64
	Date        time.Time
	Period      string // YYYY-MM, empty if the file has no period column
	ProgramCode string
	Category    string
	Subcategory string
	Invoice     string
	Reference   string
	ExternalID  string
	Raw         Row
}

// Parse extracts a draft from one row. programCode is the owning
// session's program code; rows whose extracted code differs are
// rejected with OutcomeProgramMismatch (silently dropped, not errored).
func Parse(row Row, mapping ColumnMapping, programCode string) (*Draft, Outcome) {
	vendor := strings.TrimSpace(row[mapping.VendorColumn])
	description := strings.TrimSpace(row[mapping.DescriptionColumn])
	rawAmount := strings.TrimSpace(row[mapping.AmountColumn])
	rawDate := strings.TrimSpace(row[mapping.DateColumn])

	if vendor == "" || description == "" || rawAmount == "" || rawDate == "" {
		return nil, OutcomeMissingField
	}

	amount, ok := ParseAmount(rawAmount)
	if !ok {
		return nil, OutcomeMissingField
	}

	date, ok := ParseDate(rawDate, mapping.DateFormat)
	if !ok {
		return nil, OutcomeBadDate
	}

	code := programCodePattern.FindString(row[mapping.ProgramCodeColumn])
	if code == "" {
		return nil, OutcomeNoProgramCode
	}
	if !strings.EqualFold(code, programCode) {
		return nil, OutcomeProgramMismatch
	}

	draft := &Draft{
		Vendor:      vendor,
		Description: description,
		Amount:      amount,
		Date:        date,
		ProgramCode: strings.ToUpper(code),
		Raw:         row,
	}

	if mapping.PeriodColumn != "" {
		draft.Period = ParsePeriod(row[mapping.PeriodColumn])
	}
	if mapping.CategoryColumn != "" {
		draft.Category = strings.TrimSpace(row[mapping.CategoryColumn])
	}
	if mapping.SubcategoryColumn != "" {
		draft.Subcategory = strings.TrimSpace(row[mapping.SubcategoryColumn])
	}
	if mapping.InvoiceColumn != "" {
		draft.Invoice = strings.TrimSpace(row[mapping.InvoiceColumn])
	}
	if mapping.ReferenceColumn != "" {
		draft.Reference = strings.TrimSpace(row[mapping.ReferenceColumn])
	}
	if mapping.TransactionIDColumn != "" {
		draft.ExternalID = strings.TrimSpace(row[mapping.TransactionIDColumn])
	}

	return draft, OutcomeOK
}

// ParseAmount parses a currency cell. Handles "$1,234.56", leading
// minus, and accounting-style parentheses for negatives.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}
