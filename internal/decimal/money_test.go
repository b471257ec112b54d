package decimal

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApplyDiscount(t *testing.T) {
	amount := MustFromString("200")

	assert.True(t, ApplyDiscount(amount, Zero).Equal(amount))
	assert.True(t, ApplyDiscount(amount, MustFromString("10")).Equal(MustFromString("180")))
	assert.True(t, ApplyDiscount(amount, MustFromString("100")).Equal(Zero))
}

func TestPercentage(t *testing.T) {
	assert.True(t, Percentage(MustFromString("100"), MustFromString("19"), 2).Equal(MustFromString("19.00")))
	// rounding at the currency precision
	assert.True(t, Percentage(MustFromString("33.33"), MustFromString("5.5"), 2).Equal(MustFromString("1.83")))
}

func TestDivByZero(t *testing.T) {
	assert.True(t, Div(MustFromString("10"), Zero).Equal(Zero))
	assert.True(t, Div(MustFromString("10"), MustFromString("4")).Equal(MustFromString("2.5")))
}

func TestWithinTolerance(t *testing.T) {
	a := MustFromString("100.00")

	assert.True(t, WithinTolerance(a, MustFromString("100.01"), 2))
	assert.False(t, WithinTolerance(a, MustFromString("100.02"), 2))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "5.00", Format(decimal.NewFromInt(5), 2))
	assert.Equal(t, "5", Format(decimal.NewFromInt(5), 0))
}
