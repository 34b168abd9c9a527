// Package rowsource reads vendor spreadsheet exports into rows keyed by
// column header, the shape the row parser consumes.
package rowsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
)

// Source yields the data rows of one uploaded file
type Source interface {
	Rows() ([]rowparse.Row, error)
}

// FromReader picks a source implementation from the filename extension.
// Legacy .xls workbooks are not readable; callers get a clear error
// telling the operator to re-export as .xlsx.
func FromReader(r io.Reader, filename string) (Source, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return NewXLSXSource(r), nil
	case ".csv":
		return NewCSVSource(r), nil
	case ".xls":
		return nil, fmt.Errorf("legacy .xls files are not supported, re-export %q as .xlsx", filename)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}

// Open reads a file from disk via the extension-matched source
func Open(path string) ([]rowparse.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	src, err := FromReader(f, path)
	if err != nil {
		return nil, err
	}
	return src.Rows()
}

// XLSXSource reads the first sheet of an xlsx workbook
type XLSXSource struct {
	r io.Reader
}

// NewXLSXSource wraps a reader holding xlsx bytes
func NewXLSXSource(r io.Reader) *XLSXSource {
	return &XLSXSource{r: r}
}

// Rows returns the sheet's data rows keyed by the header row
func (s *XLSXSource) Rows() ([]rowparse.Row, error) {
	f, err := excelize.OpenReader(s.r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return cellsToRows(cells), nil
}

// CSVSource reads comma-separated files
type CSVSource struct {
	r io.Reader
}

// NewCSVSource wraps a reader holding csv text
func NewCSVSource(r io.Reader) *CSVSource {
	return &CSVSource{r: r}
}

// Rows returns the file's data rows keyed by the header row
func (s *CSVSource) Rows() ([]rowparse.Row, error) {
	reader := csv.NewReader(s.r)
	reader.FieldsPerRecord = -1

	cells, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(cells) > 0 && len(cells[0]) > 0 {
		// Strip a UTF-8 BOM some exporters prepend
		cells[0][0] = strings.TrimPrefix(cells[0][0], "\ufeff")
	}
	return cellsToRows(cells), nil
}

// cellsToRows maps the header row onto every data row. Rows with no
// non-empty cell are dropped.
func cellsToRows(cells [][]string) []rowparse.Row {
	if len(cells) < 2 {
		return nil
	}

	header := make([]string, len(cells[0]))
	for i, h := range cells[0] {
		header[i] = strings.TrimSpace(h)
	}

	var rows []rowparse.Row
	for _, record := range cells[1:] {
		row := make(rowparse.Row, len(header))
		empty := true
		for i, key := range header {
			if key == "" {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			if value != "" {
				empty = false
			}
			row[key] = value
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}
