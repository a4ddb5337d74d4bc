package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseExcel reads the first worksheet of an XLSX workbook into a Dataset
// using the explicit field mapping. The first non-empty row is the header.
func ParseExcel(data []byte, mapping FieldMapping) (*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := pickSheet(f)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}

	headerIdx := -1
	for i, row := range rows {
		if rowHasContent(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheetName)
	}

	headers := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		headers[i] = strings.TrimSpace(h)
	}

	if err := mapping.Validate(headers); err != nil {
		return nil, err
	}

	ds := &Dataset{Headers: headers}
	for i := headerIdx + 1; i < len(rows); i++ {
		if !rowHasContent(rows[i]) {
			continue
		}
		row, reason := buildRow(rows[i], mapping)
		if reason != "" {
			ds.recordSkip(fmt.Sprintf("row %d: %s", i+1, reason))
			continue
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

// ExcelHeaders reads just the header row of the first worksheet, for mapping
// suggestion before a full parse.
func ExcelHeaders(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := pickSheet(f)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		if rowHasContent(row) {
			headers := make([]string, len(row))
			for i, h := range row {
				headers[i] = strings.TrimSpace(h)
			}
			return headers, nil
		}
	}
	return nil, fmt.Errorf("sheet %s is empty", sheetName)
}

// pickSheet prefers a sheet whose name suggests payables data, falling back
// to the first sheet.
func pickSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, name := range sheets {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "payab") || strings.Contains(lower, "vendor") ||
			strings.Contains(lower, "purchase") {
			return name
		}
	}
	return sheets[0]
}

func rowHasContent(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return true
		}
	}
	return false
}
