package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
)

const skipSampleLimit = 5

// canonicalRow supports gocsv header-name unmarshaling for files that already
// use canonical column names. Variant spellings map to separate fields and
// are coalesced afterwards.
type canonicalRow struct {
	PaymentTerms    string `csv:"payment terms"`
	PaymentTermsAlt string `csv:"payment_terms"`
	Terms           string `csv:"terms"`
	NetTerms        string `csv:"net terms"`

	Amount      string `csv:"amount"`
	TotalAmount string `csv:"total amount"`
	Value       string `csv:"value"`

	Vendor     string `csv:"vendor"`
	VendorName string `csv:"vendor name"`
	Supplier   string `csv:"supplier"`
}

// ParseCSV parses CSV bytes using the explicit field mapping. The mapping is
// validated against the detected headers first; parsing never guesses columns
// by name.
func ParseCSV(data []byte, config *FileConfig, mapping FieldMapping) (*Dataset, error) {
	if err := mapping.Validate(config.Headers); err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(normalizeBytes(data)))
	reader.Comma = config.Delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	// Skip metadata lines plus the header row itself.
	for i := 0; i <= config.SkipLines; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("failed to read past header: %w", err)
		}
	}

	ds := &Dataset{Headers: config.Headers}
	lineNum := config.SkipLines + 2 // 1-indexed, first data row

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			ds.recordSkip(fmt.Sprintf("line %d: %v", lineNum, err))
			lineNum++
			continue
		}

		row, reason := buildRow(record, mapping)
		if reason != "" {
			ds.recordSkip(fmt.Sprintf("line %d: %s", lineNum, reason))
			lineNum++
			continue
		}

		ds.Rows = append(ds.Rows, row)
		lineNum++
	}

	return ds, nil
}

// Canonical header names, keyed by normalized header text. Files carrying
// one term and one amount header from these sets can skip the mapping step.
var (
	canonicalTermHeaders = map[string]bool{
		"payment terms": true, "payment_terms": true, "terms": true, "net terms": true,
	}
	canonicalAmountHeaders = map[string]bool{
		"amount": true, "total amount": true, "value": true,
	}
)

// HasCanonicalHeaders reports whether the header row carries canonical term
// and amount names, so ParseCanonicalCSV can resolve columns by name alone.
func HasCanonicalHeaders(headers []string) bool {
	var term, amount bool
	for _, h := range headers {
		n := strings.ToLower(strings.TrimSpace(h))
		term = term || canonicalTermHeaders[n]
		amount = amount || canonicalAmountHeaders[n]
	}
	return term && amount
}

// ParseCanonicalCSV parses files whose headers already use canonical names
// ("payment terms", "amount", "vendor" or close variants) via gocsv struct
// tags, without any mapping step. Header casing is ignored.
func ParseCanonicalCSV(data []byte) (*Dataset, error) {
	var rows []canonicalRow
	if err := gocsv.UnmarshalBytes(lowerHeaderLine(normalizeBytes(data)), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	ds := &Dataset{}
	for i, raw := range rows {
		termText := coalesce(raw.PaymentTerms, raw.PaymentTermsAlt, raw.Terms, raw.NetTerms)
		amountText := coalesce(raw.Amount, raw.TotalAmount, raw.Value)
		if termText == "" || amountText == "" {
			ds.recordSkip(fmt.Sprintf("row %d: missing terms or amount", i+1))
			continue
		}
		amount, err := ParseAmount(amountText)
		if err != nil {
			ds.recordSkip(fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		ds.Rows = append(ds.Rows, Row{
			Vendor:   coalesce(raw.Vendor, raw.VendorName, raw.Supplier),
			TermText: termText,
			Amount:   amount,
		})
	}
	return ds, nil
}

// buildRow converts a raw record into a Row using the mapping. A non-empty
// reason means the record is skipped.
func buildRow(record []string, mapping FieldMapping) (Row, string) {
	getValue := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	termText := getValue(mapping.TermCol)
	amountText := getValue(mapping.AmountCol)
	if termText == "" && amountText == "" {
		return Row{}, "empty row"
	}
	if termText == "" {
		return Row{}, "missing payment terms"
	}
	if amountText == "" {
		return Row{}, "missing amount"
	}

	amount, err := ParseAmount(amountText)
	if err != nil {
		return Row{}, err.Error()
	}

	return Row{
		Vendor:   getValue(mapping.VendorCol),
		TermText: termText,
		Amount:   amount,
	}, ""
}

// ParseAmount parses a monetary string, tolerating currency symbols,
// thousands separators and parenthesized negatives. A comma is only treated
// as a decimal separator when it cannot be a grouping separator: either a
// dot precedes it (1.234,56) or it is a lone comma not followed by exactly
// three digits (1234,56). Grouped integers like 5,000 and 1,23,456 keep
// their integer value.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	for _, sym := range []string{"₹", "$", "€", "£", "INR", "USD", "EUR", "Rs.", "Rs"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "(") {
		negative = true
		s = strings.TrimPrefix(s, "-")
		s = strings.Trim(s, "()")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot > lastComma:
		// 1,234.56: commas group thousands
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0 && lastDot >= 0:
		// 1.234,56: European, dots group thousands
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case lastComma >= 0 && strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3:
		// 1234,56: lone comma that cannot be grouping
		s = strings.Replace(s, ",", ".", 1)
	default:
		// 5,000 or 1,23,456: grouping only
		s = strings.ReplaceAll(s, ",", "")
	}

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if negative {
		amount = -amount
	}
	return amount, nil
}

func (ds *Dataset) recordSkip(reason string) {
	ds.RowsSkipped++
	if len(ds.SkipSamples) < skipSampleLimit {
		ds.SkipSamples = append(ds.SkipSamples, reason)
	}
}

// lowerHeaderLine lowercases the first line so gocsv tag matching is
// case-insensitive without touching the data rows.
func lowerHeaderLine(data []byte) []byte {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return bytes.ToLower(data)
	}
	out := make([]byte, 0, len(data))
	out = append(out, bytes.ToLower(data[:i])...)
	return append(out, data[i:]...)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// normalizeBytes strips a UTF-8 BOM and re-encodes Latin-1 payloads so the
// CSV reader always sees valid UTF-8.
func normalizeBytes(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return data
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}
