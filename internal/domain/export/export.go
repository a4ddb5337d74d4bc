// Package export renders optimization results as downloadable CSV or XLSX
// documents.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/dmondal123/excel-chat/internal/domain/terms"
	"github.com/dmondal123/excel-chat/pkg/money"
)

// Format selects the output document type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a user-supplied format string, defaulting to CSV.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type for HTTP responses.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	if f == FormatXLSX {
		return ".xlsx"
	}
	return ".csv"
}

// resultRow is the flat per-group export record.
type resultRow struct {
	CurrentTerm              float64 `csv:"current_term_days"`
	TargetTerm               float64 `csv:"target_term_days"`
	TermChange               float64 `csv:"term_change_days"`
	VendorCount              float64 `csv:"vendor_count"`
	TotalAmount              float64 `csv:"total_amount"`
	WeightedCurrentValue     float64 `csv:"weighted_current_value"`
	WeightedTargetValue      float64 `csv:"weighted_target_value"`
	DailyPayableRate         float64 `csv:"daily_payable_rate"`
	CashInventoryImprovement float64 `csv:"cash_inventory_improvement"`
	ForegoneInterest         float64 `csv:"foregone_interest"`
}

func toRows(a *terms.Allocation) []resultRow {
	rows := make([]resultRow, len(a.Rows))
	for i, r := range a.Rows {
		rows[i] = resultRow{
			CurrentTerm:              r.CurrentTerm,
			TargetTerm:               r.TargetTerm,
			TermChange:               r.TermChange,
			VendorCount:              r.VendorCount,
			TotalAmount:              r.TotalAmount,
			WeightedCurrentValue:     r.WeightedCurrentValue,
			WeightedTargetValue:      r.WeightedTargetValue,
			DailyPayableRate:         r.DailyPayableRate,
			CashInventoryImprovement: r.CashInventoryImprovement,
			ForegoneInterest:         r.ForegoneInterest,
		}
	}
	return rows
}

// CSV renders the allocation as a CSV document with a canonical header row.
func CSV(a *terms.Allocation) ([]byte, error) {
	out, err := gocsv.MarshalBytes(toRows(a))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return out, nil
}

// summaryLine is one key/value row on the XLSX summary sheet.
type summaryLine struct {
	label string
	value interface{}
}

// XLSX renders the allocation as a workbook with a summary sheet and a
// per-group results sheet. annualRate is the interest rate the run used, as
// a fraction.
func XLSX(a *terms.Allocation, annualRate float64) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	const resultsSheet = "Allocations"

	f.SetSheetName(f.GetSheetName(0), summarySheet)
	if _, err := f.NewSheet(resultsSheet); err != nil {
		return nil, fmt.Errorf("failed to create results sheet: %w", err)
	}

	if err := writeSummary(f, summarySheet, a, annualRate); err != nil {
		return nil, err
	}
	if err := writeResults(f, resultsSheet, a); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, sheet string, a *terms.Allocation, annualRate float64) error {
	feasibility := "achievable"
	if !a.Feasible {
		feasibility = "not achievable within bounds"
	}

	// Totals accumulate in minor units so the summary never shows a
	// float-rounding artifact.
	improvement := money.Zero(money.INR)
	interest := money.Zero(money.INR)
	for _, r := range a.Rows {
		improvement = improvement.MustAdd(money.NewFromFloat(r.CashInventoryImprovement, money.INR))
		interest = interest.MustAdd(money.NewFromFloat(r.ForegoneInterest, money.INR))
	}

	lines := []summaryLine{
		{"Generated", time.Now().Format("2006-01-02 15:04")},
		{"Requested average term (days)", a.RequestedAverage},
		{"Achieved average term (days)", a.AchievedAverage},
		{"Feasibility", feasibility},
		{"Shortfall (weighted days)", a.Shortfall},
		{"Total vendors", a.TotalVendors},
		{"Total payables", money.NewFromFloat(a.TotalAmount, money.INR).Display()},
		{"Cash inventory improvement", improvement.Display()},
		{"Annual interest rate", fmt.Sprintf("%.2f%%", annualRate*100)},
		{"Foregone interest (annual)", interest.Display()},
		{"Foregone interest (30-day horizon)", improvement.SimpleInterest(annualRate, 30).Display()},
	}

	for i, line := range lines {
		labelCell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		valueCell, err := excelize.CoordinatesToCellName(2, i+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, labelCell, line.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, valueCell, line.value); err != nil {
			return err
		}
	}
	return nil
}

var resultHeaders = []string{
	"Current Term (days)", "Target Term (days)", "Term Change (days)",
	"Vendor Count", "Total Amount", "Weighted Current Value",
	"Weighted Target Value", "Daily Payable Rate",
	"Cash Inventory Improvement", "Foregone Interest",
}

func writeResults(f *excelize.File, sheet string, a *terms.Allocation) error {
	if err := f.SetSheetRow(sheet, "A1", &resultHeaders); err != nil {
		return err
	}

	for i, r := range a.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.CurrentTerm, r.TargetTerm, r.TermChange,
			r.VendorCount, r.TotalAmount, r.WeightedCurrentValue,
			r.WeightedTargetValue, r.DailyPayableRate,
			r.CashInventoryImprovement, r.ForegoneInterest,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
