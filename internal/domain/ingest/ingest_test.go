package ingest_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dmondal123/excel-chat/internal/domain/ingest"
)

const payablesCSV = `Vendor Name,Current Payment Terms,Total Purchase Value  July 25 against the Vendors (INR)
Acme Metals,Net 30,"1,89,716.86"
Birla Fasteners,Net 15,"4,632.34"
Chandra Freight,on delivery,543.38
`

func TestValidateFile(t *testing.T) {
	assert.NoError(t, ingest.ValidateFile("report.xlsx", 1024, 50*1024*1024))
	assert.NoError(t, ingest.ValidateFile("report.csv", 1024, 0))

	err := ingest.ValidateFile("report.pdf", 1024, 50*1024*1024)
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFileType)

	err = ingest.ValidateFile("report.xlsx", 51*1024*1024, 50*1024*1024)
	assert.ErrorIs(t, err, ingest.ErrFileTooLarge)
}

func TestDetectConfig(t *testing.T) {
	config, err := ingest.DetectConfig([]byte(payablesCSV))
	require.NoError(t, err)

	assert.Equal(t, ',', int32(config.Delimiter))
	assert.Equal(t, 0, config.SkipLines)
	assert.Equal(t, "Vendor Name", config.Headers[0])
	assert.NotEmpty(t, config.Fingerprint)
	assert.Len(t, config.SampleRows, 3)
}

func TestDetectConfig_SemicolonWithMetadataLines(t *testing.T) {
	data := "Exported 2025-07-31\nAccount: payables\nVendor;Payment Terms;Amount\nAcme;Net 30;1200,50\n"

	config, err := ingest.DetectConfig([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, ';', int32(config.Delimiter))
	assert.Equal(t, 2, config.SkipLines)
	assert.Equal(t, []string{"Vendor", "Payment Terms", "Amount"}, config.Headers)
}

func TestDetectConfig_EmptyFile(t *testing.T) {
	_, err := ingest.DetectConfig(nil)
	assert.Error(t, err)
}

func TestSuggestMapping(t *testing.T) {
	config, err := ingest.DetectConfig([]byte(payablesCSV))
	require.NoError(t, err)

	mapping := ingest.SuggestMapping(config.Headers)
	assert.Equal(t, 1, mapping.TermCol)
	assert.Equal(t, 2, mapping.AmountCol)
	assert.Equal(t, 0, mapping.VendorCol)
}

func TestSuggestMapping_NoPlausibleHeaders(t *testing.T) {
	mapping := ingest.SuggestMapping([]string{"x", "y", "z"})
	assert.Equal(t, -1, mapping.TermCol)
	assert.Equal(t, -1, mapping.AmountCol)
}

func TestFieldMappingValidate(t *testing.T) {
	headers := []string{"Vendor", "Payment Terms", "Amount"}

	assert.NoError(t, ingest.FieldMapping{TermCol: 1, AmountCol: 2, VendorCol: 0}.Validate(headers))
	assert.NoError(t, ingest.FieldMapping{TermCol: 1, AmountCol: 2, VendorCol: -1}.Validate(headers))

	err := ingest.FieldMapping{TermCol: -1, AmountCol: 9, VendorCol: 0}.Validate(headers)
	var missingErr *ingest.MissingColumnsError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"payment_terms", "amount"}, missingErr.Missing)
}

func TestParseCSV(t *testing.T) {
	config, err := ingest.DetectConfig([]byte(payablesCSV))
	require.NoError(t, err)

	ds, err := ingest.ParseCSV([]byte(payablesCSV), config, ingest.FieldMapping{
		TermCol: 1, AmountCol: 2, VendorCol: 0,
	})
	require.NoError(t, err)

	require.Len(t, ds.Rows, 3)
	assert.Equal(t, "Acme Metals", ds.Rows[0].Vendor)
	assert.Equal(t, "Net 30", ds.Rows[0].TermText)
	assert.InDelta(t, 189716.86, ds.Rows[0].Amount, 1e-9)
	assert.Zero(t, ds.RowsSkipped)
}

func TestParseCSV_SkipsBadRows(t *testing.T) {
	data := "Vendor,Payment Terms,Amount\nAcme,Net 30,100\nNoAmount,Net 15,\n,,\nBadAmount,Net 7,xx\n"
	config, err := ingest.DetectConfig([]byte(data))
	require.NoError(t, err)

	ds, err := ingest.ParseCSV([]byte(data), config, ingest.FieldMapping{TermCol: 1, AmountCol: 2, VendorCol: 0})
	require.NoError(t, err)

	assert.Len(t, ds.Rows, 1)
	assert.Equal(t, 3, ds.RowsSkipped)
	assert.NotEmpty(t, ds.SkipSamples)
}

func TestParseCSV_MissingColumns(t *testing.T) {
	config, err := ingest.DetectConfig([]byte(payablesCSV))
	require.NoError(t, err)

	_, err = ingest.ParseCSV([]byte(payablesCSV), config, ingest.FieldMapping{TermCol: -1, AmountCol: -1, VendorCol: 0})
	var missingErr *ingest.MissingColumnsError
	require.ErrorAs(t, err, &missingErr)
}

func TestParseCanonicalCSV(t *testing.T) {
	data := "vendor,payment terms,amount\nAcme,Net 30,1200.50\nBirla,Net 15,\"2,500\"\n"

	ds, err := ingest.ParseCanonicalCSV([]byte(data))
	require.NoError(t, err)

	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "Acme", ds.Rows[0].Vendor)
	assert.InDelta(t, 1200.50, ds.Rows[0].Amount, 1e-9)
	assert.InDelta(t, 2500.0, ds.Rows[1].Amount, 1e-9)
}

func TestParseCanonicalCSV_MixedCaseHeaders(t *testing.T) {
	data := "Vendor,Payment Terms,Amount\nAcme,Net 30,100\n"

	ds, err := ingest.ParseCanonicalCSV([]byte(data))
	require.NoError(t, err)

	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "Acme", ds.Rows[0].Vendor)
	assert.InDelta(t, 100.0, ds.Rows[0].Amount, 1e-9)
}

func TestHasCanonicalHeaders(t *testing.T) {
	assert.True(t, ingest.HasCanonicalHeaders([]string{"Vendor", "Payment Terms", "Amount"}))
	assert.True(t, ingest.HasCanonicalHeaders([]string{"terms", "value"}))
	assert.False(t, ingest.HasCanonicalHeaders([]string{"Vendor Name", "Current Payment Terms", "Total Purchase Value (INR)"}))
	assert.False(t, ingest.HasCanonicalHeaders([]string{"Payment Terms"}))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1200.50", 1200.50},
		{"1,234.56", 1234.56},
		{"1.234,56", 1234.56},
		{"1234,56", 1234.56},
		{"₹ 5,000", 5000},
		{"5,000", 5000},
		{"1,23,456", 123456},
		{"₹ 46,32,135.34", 4632135.34},
		{"$99", 99},
		{"-120", -120},
		{"(450.25)", -450.25},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ingest.ParseAmount(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := ingest.ParseAmount("")
	assert.Error(t, err)
	_, err = ingest.ParseAmount("abc")
	assert.Error(t, err)
}

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, name, cell))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseExcel(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Vendor", "Payment Terms", "Amount"},
		{"Acme", "Net 30", 189716.86},
		{"Birla", "Net 15", 4632.34},
	})

	ds, err := ingest.ParseExcel(data, ingest.FieldMapping{TermCol: 1, AmountCol: 2, VendorCol: 0})
	require.NoError(t, err)

	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "Acme", ds.Rows[0].Vendor)
	assert.InDelta(t, 189716.86, ds.Rows[0].Amount, 1e-6)
}

func TestExcelHeaders(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Vendor", "Payment Terms", "Amount"},
		{"Acme", "Net 30", 100},
	})

	headers, err := ingest.ExcelHeaders(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vendor", "Payment Terms", "Amount"}, headers)
}
