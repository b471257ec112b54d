// Package decimal wraps shopspring/decimal with the rounding and
// formatting conventions used across the codecs. Amount formatting is part
// of the interop contract: a monetary value is always emitted with exactly
// the currency's decimal places.
package decimal

import (
	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// FromInt creates a decimal from an int
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// FromString parses a decimal from a string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustFromString parses a decimal from a string, panics on error.
// Reserved for literals in tests and tables
func MustFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Round rounds to the given currency precision
func Round(d decimal.Decimal, precision int32) decimal.Decimal {
	return d.Round(precision)
}

// Format renders d with exactly precision decimal places
func Format(d decimal.Decimal, precision int32) string {
	return d.StringFixed(precision)
}

// Div divides a by b, returning zero for a zero divisor
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return Zero
	}
	return a.Div(b)
}

// ApplyDiscount returns amount * (1 - percent/100)
func ApplyDiscount(amount, percent decimal.Decimal) decimal.Decimal {
	if percent.IsZero() {
		return amount
	}
	hundred := decimal.NewFromInt(100)
	return amount.Mul(hundred.Sub(percent)).Div(hundred)
}

// Percentage computes amount * (percent/100) rounded to precision
func Percentage(amount, percent decimal.Decimal, precision int32) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return amount.Mul(percent).Div(hundred).Round(precision)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// WithinTolerance reports whether a and b differ by at most one unit of
// the last decimal place at the given precision
func WithinTolerance(a, b decimal.Decimal, precision int32) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.New(1, -precision))
}
