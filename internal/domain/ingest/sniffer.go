package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

// Payables header keywords used to locate the header row among leading
// metadata lines.
var headerKeywords = []string{
	"vendor", "supplier", "payment", "terms", "amount", "value",
	"invoice", "purchase", "date", "currency",
}

// FileConfig holds the detected layout of a CSV file.
type FileConfig struct {
	Delimiter   rune       // field delimiter (',', ';', '\t')
	SkipLines   int        // metadata lines before the header row
	Headers     []string   // detected header names
	Fingerprint string     // SHA256 of normalized headers, for source recognition
	SampleRows  [][]string // first few data rows for preview / mapping UI
}

const sampleRowLimit = 5

// DetectConfig sniffs delimiter and header row from raw CSV bytes.
func DetectConfig(data []byte) (*FileConfig, error) {
	lines := splitLines(data)
	if len(lines) == 0 {
		return nil, errors.New("empty file")
	}

	delimiter := detectDelimiter(lines)
	headerIdx := detectHeaderRow(lines, delimiter)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	for i := 0; i < headerIdx; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, errors.New("file has no header row")
		}
	}

	headers, err := reader.Read()
	if err != nil {
		return nil, errors.New("file has no header row")
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	config := &FileConfig{
		Delimiter:   delimiter,
		SkipLines:   headerIdx,
		Headers:     headers,
		Fingerprint: fingerprint(headers),
	}

	for len(config.SampleRows) < sampleRowLimit {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		config.SampleRows = append(config.SampleRows, record)
	}

	return config, nil
}

// detectDelimiter counts candidate delimiters across the first lines and
// picks the most consistent one. Comma wins ties.
func detectDelimiter(lines []string) rune {
	candidates := []rune{',', ';', '\t'}
	bestDelim := ','
	bestCount := 0

	limit := len(lines)
	if limit > 10 {
		limit = 10
	}

	for _, delim := range candidates {
		total := 0
		for _, line := range lines[:limit] {
			total += strings.Count(line, string(delim))
		}
		if total > bestCount {
			bestCount = total
			bestDelim = delim
		}
	}
	return bestDelim
}

// detectHeaderRow scans leading lines for the row that looks most like a
// payables header: several delimited fields, at least one known keyword.
func detectHeaderRow(lines []string, delimiter rune) int {
	limit := len(lines)
	if limit > 10 {
		limit = 10
	}

	for i := 0; i < limit; i++ {
		fields := strings.Split(lines[i], string(delimiter))
		if len(fields) < 2 {
			continue
		}
		lower := strings.ToLower(lines[i])
		for _, keyword := range headerKeywords {
			if strings.Contains(lower, keyword) {
				return i
			}
		}
	}
	return 0
}

func fingerprint(headers []string) string {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:])
}

func splitLines(data []byte) []string {
	raw := strings.Split(string(data), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
