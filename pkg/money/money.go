// Package money provides currency-safe financial arithmetic using integer
// minor units and the Fowler Money pattern. Payables amounts are parsed,
// aggregated and displayed through this package so no report ever shows a
// float-rounding artifact.
package money

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	INR = "INR" // Indian Rupee, the default for payables reports
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
)

// Money represents a monetary value with currency.
// It wraps go-money for safe arithmetic and shopspring/decimal for precision.
type Money struct {
	m *money.Money
}

// New creates a new Money value from minor units and currency code.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{
		m: money.New(amountMinor, currencyCode),
	}
}

// NewFromFloat creates Money from a floating-point value.
// Conversion to minor units goes through decimal to avoid float artifacts.
func NewFromFloat(amount float64, currencyCode string) *Money {
	return NewFromDecimal(decimal.NewFromFloat(amount), currencyCode)
}

// NewFromDecimal creates Money from a decimal.Decimal value.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(INR)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	minor := amount.Mul(multiplier).Round(0).IntPart()

	return New(minor, currency.Code)
}

// NewFromString parses a string amount and currency.
// Accepts formats like "100.50", "1,234.56", "1.234,56" (European).
func NewFromString(amount string, currencyCode string, europeanFormat bool) (*Money, error) {
	amount = strings.TrimSpace(amount)
	amount = strings.ReplaceAll(amount, " ", "")

	for _, sym := range []string{"₹", "$", "€", "£", "Rs."} {
		amount = strings.ReplaceAll(amount, sym, "")
	}

	if europeanFormat {
		amount = strings.ReplaceAll(amount, ".", "")
		amount = strings.ReplaceAll(amount, ",", ".")
	} else {
		amount = strings.ReplaceAll(amount, ",", "")
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	return NewFromDecimal(d, currencyCode), nil
}

// Zero returns a zero Money value for the given currency
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the amount in minor units
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero returns true if the amount is zero
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative returns true if the amount is less than zero
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Abs returns the absolute value
func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return Zero(INR)
	}
	return &Money{m: m.m.Absolute()}
}

// Add adds two Money values. Returns error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}

	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// MustAdd adds two Money values, panics if currencies don't match.
func (m *Money) MustAdd(other *Money) *Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract subtracts other from m. Returns error if currencies don't match.
func (m *Money) Subtract(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		if other == nil {
			return Zero(INR), nil
		}
		return &Money{m: other.m.Negative()}, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}

	result, err := m.m.Subtract(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Multiply multiplies by an integer factor
func (m *Money) Multiply(factor int64) *Money {
	if m == nil || m.m == nil {
		return Zero(INR)
	}
	return &Money{m: m.m.Multiply(factor)}
}

// MultiplyDecimal multiplies by a decimal factor for precise calculations.
func (m *Money) MultiplyDecimal(factor decimal.Decimal) *Money {
	if m == nil || m.m == nil {
		return Zero(INR)
	}
	return NewFromDecimal(m.ToDecimal().Mul(factor), m.Currency())
}

// DivideDecimal divides by a decimal divisor for precise calculations.
func (m *Money) DivideDecimal(divisor decimal.Decimal) *Money {
	if m == nil || m.m == nil || divisor.IsZero() {
		return Zero(INR)
	}
	return NewFromDecimal(m.ToDecimal().Div(divisor), m.Currency())
}

// Equals returns true if both values are equal
func (m *Money) Equals(other *Money) bool {
	if m == nil || m.m == nil {
		return other == nil || other.m == nil || other.IsZero()
	}
	if other == nil || other.m == nil {
		return m.IsZero()
	}
	eq, _ := m.m.Equals(other.m)
	return eq
}

// Display returns a formatted string for display (e.g., "₹1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return money.New(0, INR).Display()
	}
	return m.m.Display()
}

// String returns the amount as a decimal string (e.g., "1234.56")
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().String()
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(currency.Fraction))
	return d.Div(divisor)
}

// ToFloat64 converts to float64 (use with caution, display only)
func (m *Money) ToFloat64() float64 {
	return m.ToDecimal().InexactFloat64()
}

// SimpleInterest calculates simple interest.
// annualRate is the annual rate as a fraction (e.g., 0.0515 for 5.15%),
// days is the accrual period in days on a 365-day basis.
func (m *Money) SimpleInterest(annualRate float64, days float64) *Money {
	if m == nil || m.m == nil {
		return Zero(INR)
	}

	d := m.ToDecimal()
	rate := decimal.NewFromFloat(annualRate)
	period := decimal.NewFromFloat(days).Div(decimal.NewFromInt(365))
	return NewFromDecimal(d.Mul(rate).Mul(period), m.Currency())
}

