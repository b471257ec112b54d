package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/docexchange/internal/decimal"
)

// Date layouts observed across source codecs. EDIFACT headers use packed
// CCYYMMDD forms and routinely omit the time part; UBL uses ISO dates,
// sometimes with a separate time element joined by the caller.
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"200601021504",
	"20060102150405",
}

// ParseDate coerces an assorted date-like string into a time.Time
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ParseError{Field: "date", Message: "empty date"}
	}
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, &ParseError{Field: "date", Message: "unrecognized date " + s, Cause: firstErr}
}

// LineSubtotal computes the tax-excluded amount of one line, rounded to
// the given currency precision
func LineSubtotal(line DocumentLine, precision int32) decimal.Decimal {
	if line.SectionHeader {
		return decimal.Zero
	}
	sub := money.ApplyDiscount(line.Quantity.Mul(line.UnitPrice), line.DiscountPercent)
	return money.Round(sub, precision)
}

// LineTax computes the tax carried by one line from its percent tax refs,
// rounding at each step with the currency precision
func LineTax(line DocumentLine, precision int32) decimal.Decimal {
	sub := LineSubtotal(line, precision)
	tax := decimal.Zero
	for _, t := range line.Taxes {
		switch t.AmountType {
		case "fixed":
			tax = tax.Add(t.Amount.Mul(line.Quantity).Round(precision))
		default:
			tax = tax.Add(money.Percentage(sub, t.Amount, precision))
		}
	}
	return tax
}

// ValidateTotals recomputes the document totals from its lines and
// compares them with the header amounts within tolerance. Mismatches are
// reported as warnings, never as errors: real-world source documents
// frequently carry small rounding discrepancies and the import must not
// abort on them.
func ValidateTotals(doc *Document, precision int32) {
	if len(doc.Lines) == 0 {
		return
	}
	sumUntaxed := decimal.Zero
	sumTax := decimal.Zero
	for _, line := range doc.Lines {
		sumUntaxed = sumUntaxed.Add(LineSubtotal(line, precision))
		sumTax = sumTax.Add(LineTax(line, precision))
	}
	if !doc.AmountUntaxed.IsZero() && !money.WithinTolerance(doc.AmountUntaxed, sumUntaxed, precision) {
		doc.Warn("untaxed amount %s doesn't match the sum of line subtotals %s",
			money.Format(doc.AmountUntaxed, precision), money.Format(sumUntaxed, precision))
	}
	if !doc.AmountTotal.IsZero() {
		computed := sumUntaxed.Add(sumTax)
		if !doc.AmountTax.IsZero() {
			computed = sumUntaxed.Add(doc.AmountTax)
		}
		if !money.WithinTolerance(doc.AmountTotal, computed, precision) {
			doc.Warn("total amount %s doesn't match the computed total %s",
				money.Format(doc.AmountTotal, precision), money.Format(computed, precision))
		}
	}
	if !doc.AmountUntaxed.IsZero() && !doc.AmountTax.IsZero() && !doc.AmountTotal.IsZero() {
		if !money.WithinTolerance(doc.AmountUntaxed.Add(doc.AmountTax), doc.AmountTotal, precision) {
			doc.Warn("untaxed %s + tax %s doesn't add up to total %s",
				money.Format(doc.AmountUntaxed, precision),
				money.Format(doc.AmountTax, precision),
				money.Format(doc.AmountTotal, precision))
		}
	}
}
