package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmondal123/excel-chat/pkg/money"
)

func TestNewFromFloat(t *testing.T) {
	m := money.NewFromFloat(1234.56, money.INR)
	assert.Equal(t, int64(123456), m.Amount())
	assert.Equal(t, money.INR, m.Currency())
}

func TestNewFromFloat_UnknownCurrencyDefaultsToINR(t *testing.T) {
	m := money.NewFromFloat(10, "XXX-NOT-A-CODE")
	assert.Equal(t, money.INR, m.Currency())
}

func TestNewFromString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		european bool
		want     int64
	}{
		{"plain", "100.50", false, 10050},
		{"thousands", "1,234.56", false, 123456},
		{"european", "1.234,56", true, 123456},
		{"rupee symbol", "₹ 5,000", false, 500000},
		{"rs prefix", "Rs. 750", false, 75000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := money.NewFromString(tt.input, money.INR, tt.european)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Amount())
		})
	}

	_, err := money.NewFromString("not-a-number", money.INR, false)
	assert.Error(t, err)
}

func TestAddSubtract(t *testing.T) {
	a := money.NewFromFloat(100.10, money.INR)
	b := money.NewFromFloat(50.05, money.INR)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(15015), sum.Amount())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, int64(5005), diff.Amount())
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	a := money.NewFromFloat(100, money.INR)
	b := money.NewFromFloat(100, money.USD)

	_, err := a.Add(b)
	assert.Error(t, err)
}

func TestAdd_NilOperands(t *testing.T) {
	var a *money.Money
	b := money.NewFromFloat(10, money.INR)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), sum.Amount())
}

func TestMultiplyDecimal(t *testing.T) {
	// A 30 day term change on a 100.00 daily rate.
	m := money.NewFromFloat(100, money.INR).MultiplyDecimal(decimal.NewFromInt(30))
	assert.Equal(t, int64(300000), m.Amount())
}

func TestDivideDecimal_ByZero(t *testing.T) {
	m := money.NewFromFloat(100, money.INR).DivideDecimal(decimal.Zero)
	assert.True(t, m.IsZero())
}

func TestSimpleInterest(t *testing.T) {
	// 5.15% annual on 10,000.00 over a full year.
	principal := money.NewFromFloat(10000, money.INR)
	interest := principal.SimpleInterest(0.0515, 365)
	assert.Equal(t, int64(51500), interest.Amount())
}

func TestSimpleInterest_PartialYear(t *testing.T) {
	// A 30 day window accrues 30/365 of the annual interest.
	principal := money.NewFromFloat(10000, money.INR)
	interest := principal.SimpleInterest(0.0515, 30)
	assert.Equal(t, int64(4233), interest.Amount())
}

func TestMustAdd_Accumulates(t *testing.T) {
	total := money.Zero(money.INR)
	for _, v := range []float64{100.10, 50.05, 0.85} {
		total = total.MustAdd(money.NewFromFloat(v, money.INR))
	}
	assert.Equal(t, int64(15100), total.Amount())
}

func TestEquals(t *testing.T) {
	m := money.NewFromFloat(10, money.INR)
	assert.True(t, m.Equals(money.NewFromFloat(10, money.INR)))
	assert.False(t, m.Equals(money.NewFromFloat(20, money.INR)))
}

func TestDisplay(t *testing.T) {
	m := money.NewFromFloat(1234.56, money.INR)
	assert.Contains(t, m.Display(), "1,234.56")
	assert.Equal(t, "1234.56", m.String())
}

