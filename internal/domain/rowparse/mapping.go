package rowparse

import "strings"

// Row is one spreadsheet row keyed by column header, as produced by the
// rowsource adapters. Cell values arrive as raw text.
type Row map[string]string

// ColumnMapping describes which columns hold which fields for a given
// import session. It is persisted on the session as JSON so a session
// can be re-processed with the exact mapping it was created with.
type ColumnMapping struct {
	ProgramCodeColumn   string `json:"program_code_column" yaml:"program_code_column"`
	VendorColumn        string `json:"vendor_column" yaml:"vendor_column"`
	DescriptionColumn   string `json:"description_column" yaml:"description_column"`
	AmountColumn        string `json:"amount_column" yaml:"amount_column"`
	DateColumn          string `json:"date_column" yaml:"date_column"`
	PeriodColumn        string `json:"period_column,omitempty" yaml:"period_column"`
	CategoryColumn      string `json:"category_column,omitempty" yaml:"category_column"`
	SubcategoryColumn   string `json:"subcategory_column,omitempty" yaml:"subcategory_column"`
	InvoiceColumn       string `json:"invoice_column,omitempty" yaml:"invoice_column"`
	ReferenceColumn     string `json:"reference_column,omitempty" yaml:"reference_column"`
	TransactionIDColumn string `json:"transaction_id_column,omitempty" yaml:"transaction_id_column"`

	// DateFormat optionally forces a date layout ("MM/DD/YYYY",
	// "DD/MM/YYYY" or "YYYY-MM-DD") before the fallback chain runs.
	DateFormat string `json:"date_format,omitempty" yaml:"date_format"`

	// Matching overrides. Zero means use the engine defaults.
	AmountTolerance float64 `json:"amount_tolerance,omitempty" yaml:"amount_tolerance"`
	MatchThreshold  float64 `json:"match_threshold,omitempty" yaml:"match_threshold"`
}

// Validate reports whether the required columns are configured.
func (m ColumnMapping) Validate() error {
	missing := []string{}
	if m.ProgramCodeColumn == "" {
		missing = append(missing, "program_code_column")
	}
	if m.VendorColumn == "" {
		missing = append(missing, "vendor_column")
	}
	if m.DescriptionColumn == "" {
		missing = append(missing, "description_column")
	}
	if m.AmountColumn == "" {
		missing = append(missing, "amount_column")
	}
	if m.DateColumn == "" {
		missing = append(missing, "date_column")
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Columns: missing}
	}
	return nil
}

// MissingColumnsError reports required mapping columns that were not set.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "column mapping missing required columns: " + strings.Join(e.Columns, ", ")
}
