// Package ingest turns uploaded spreadsheets (CSV or XLSX) into vendor
// purchase rows. Column roles are resolved once here, against an explicit
// field mapping; downstream packages only ever see the three semantic fields
// (payment-term text, amount, vendor).
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Row is one vendor purchase record from the source file.
type Row struct {
	Vendor   string
	TermText string
	Amount   float64
}

// Dataset is the parsed content of one uploaded file.
type Dataset struct {
	FileName    string
	Headers     []string
	Rows        []Row
	RowsSkipped int      // rows dropped during parsing (empty / unparseable)
	SkipSamples []string // up to a few raw reasons for dropped rows
}

// FieldMapping names the source columns for the three semantic fields.
// VendorCol may be -1; vendor identity is informational only.
type FieldMapping struct {
	TermCol   int `json:"term_col"`
	AmountCol int `json:"amount_col"`
	VendorCol int `json:"vendor_col"`
}

// MissingColumnsError reports semantic fields that could not be resolved to a
// source column. The optimizer is never invoked when this is returned.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ErrUnsupportedFileType and ErrFileTooLarge classify upload rejections.
var (
	ErrUnsupportedFileType = fmt.Errorf("unsupported file type: expected .csv, .xlsx or .xls")
	ErrFileTooLarge        = fmt.Errorf("file exceeds the configured size limit")
)

var allowedExtensions = map[string]struct{}{
	".csv":  {},
	".xlsx": {},
	".xls":  {},
}

// ValidateFile checks extension and size before any bytes are parsed.
func ValidateFile(fileName string, sizeBytes, maxBytes int64) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("%w (got %q)", ErrUnsupportedFileType, ext)
	}
	if maxBytes > 0 && sizeBytes > maxBytes {
		return fmt.Errorf("%w (%d bytes > %d bytes)", ErrFileTooLarge, sizeBytes, maxBytes)
	}
	return nil
}

// IsExcel reports whether the file name points at an XLSX-family workbook.
func IsExcel(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	return ext == ".xlsx" || ext == ".xls"
}

// Validate checks the mapping against the detected headers, reporting every
// unresolved semantic field at once.
func (m FieldMapping) Validate(headers []string) error {
	var missing []string
	max := len(headers) - 1
	if m.TermCol < 0 || m.TermCol > max {
		missing = append(missing, "payment_terms")
	}
	if m.AmountCol < 0 || m.AmountCol > max {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Missing: missing}
	}
	if m.VendorCol > max {
		return &MissingColumnsError{Missing: []string{"vendor"}}
	}
	return nil
}
