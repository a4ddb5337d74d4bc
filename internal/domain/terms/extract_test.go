package terms_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmondal123/excel-chat/internal/domain/terms"
)

func TestExtract_GroupsByNearestValidTerm(t *testing.T) {
	ex := terms.NewExtractor(nil)

	rows := []terms.SourceRow{
		{TermDescription: "Net 30", Amount: 1000},
		{TermDescription: "30 days", Amount: 500},
		{TermDescription: "NET7", Amount: 250},
		{TermDescription: "due in 16 days", Amount: 100}, // snaps to 15
		{TermDescription: "0", Amount: 50},
	}

	result, err := ex.Extract(rows)
	require.NoError(t, err)

	assert.Equal(t, 5, result.RowsTotal)
	assert.Equal(t, 5, result.RowsGrouped)
	assert.Zero(t, result.ExcludedRows)

	require.Len(t, result.Groups, 4)
	assert.Equal(t, terms.TermGroup{CurrentTerm: 0, VendorCount: 1, TotalAmount: 50}, result.Groups[0])
	assert.Equal(t, terms.TermGroup{CurrentTerm: 7, VendorCount: 1, TotalAmount: 250}, result.Groups[1])
	assert.Equal(t, terms.TermGroup{CurrentTerm: 15, VendorCount: 1, TotalAmount: 100}, result.Groups[2])
	assert.Equal(t, terms.TermGroup{CurrentTerm: 30, VendorCount: 2, TotalAmount: 1500}, result.Groups[3])
}

func TestExtract_MidpointSnapsLow(t *testing.T) {
	// 18 is equidistant between 15 and 21.
	ex := terms.NewExtractor([]float64{15, 21})

	result, err := ex.Extract([]terms.SourceRow{{TermDescription: "18 days", Amount: 10}})
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, 15.0, result.Groups[0].CurrentTerm)
}

func TestExtract_AmountsUseAbsoluteValue(t *testing.T) {
	ex := terms.NewExtractor(nil)

	result, err := ex.Extract([]terms.SourceRow{
		{TermDescription: "Net 30", Amount: -1200.50},
		{TermDescription: "Net 30", Amount: 300},
	})
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.InDelta(t, 1500.50, result.Groups[0].TotalAmount, 1e-9)
}

func TestExtract_UnmatchedRowsExcludedAndCounted(t *testing.T) {
	ex := terms.NewExtractor(nil)

	result, err := ex.Extract([]terms.SourceRow{
		{TermDescription: "Net 30", Amount: 1000},
		{TermDescription: "on delivery", Amount: 200},
		{TermDescription: "immediate", Amount: 300},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ExcludedRows)
	assert.Equal(t, 1, result.RowsGrouped)
	assert.ElementsMatch(t, []string{"on delivery", "immediate"}, result.UnmatchedSample)

	// Excluded rows contribute to neither vendor count nor amount.
	require.Len(t, result.Groups, 1)
	assert.Equal(t, 1.0, result.Groups[0].VendorCount)
	assert.Equal(t, 1000.0, result.Groups[0].TotalAmount)
}

func TestExtract_AllRowsUnmatched(t *testing.T) {
	ex := terms.NewExtractor(nil)

	_, err := ex.Extract([]terms.SourceRow{
		{TermDescription: "on delivery", Amount: 200},
		{TermDescription: "cash", Amount: 300},
	})

	var emptyErr *terms.EmptyExtractionError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, 2, emptyErr.RowsTotal)
	assert.Contains(t, emptyErr.Sample, "on delivery")
}

func TestExtract_EmptyInput(t *testing.T) {
	ex := terms.NewExtractor(nil)

	result, err := ex.Extract(nil)
	require.NoError(t, err)
	assert.Empty(t, result.Groups)
	assert.Zero(t, result.RowsTotal)
}

func TestExtract_RejectsNonFiniteAmount(t *testing.T) {
	ex := terms.NewExtractor(nil)

	_, err := ex.Extract([]terms.SourceRow{{TermDescription: "Net 30", Amount: math.NaN()}})

	var inputErr *terms.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "amount", inputErr.Field)
}

func TestExtract_UnmatchedSampleBounded(t *testing.T) {
	ex := terms.NewExtractor(nil)

	rows := make([]terms.SourceRow, 0, 21)
	rows = append(rows, terms.SourceRow{TermDescription: "Net 30", Amount: 1})
	for i := 0; i < 20; i++ {
		rows = append(rows, terms.SourceRow{TermDescription: "unknown", Amount: 1})
	}

	result, err := ex.Extract(rows)
	require.NoError(t, err)
	assert.Equal(t, 20, result.ExcludedRows)
	assert.LessOrEqual(t, len(result.UnmatchedSample), 5)
}
