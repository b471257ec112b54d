package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanVAT(t *testing.T) {
	assert.Equal(t, "BE0477472701", CleanVAT("be 0477 472 701"))
	assert.Equal(t, "DE123456788", CleanVAT("DE123456788"))
}

func TestIsPlausibleVAT(t *testing.T) {
	cases := []struct {
		vat string
		ok  bool
	}{
		{"BE0477472701", true},
		{"de 123456788", true},
		{"FR23334175221", true},
		{"123456", false},  // no country prefix
		{"B1234", false},   // one-letter prefix
		{"DE1", false},     // too short after the prefix
		{"DE123456789012345678", false}, // too long
		{"", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, IsPlausibleVAT(c.vat), c.vat)
	}
}

func TestIsValidIBAN(t *testing.T) {
	assert.True(t, IsValidIBAN("DE89370400440532013000"))
	assert.True(t, IsValidIBAN("de89 3704 0044 0532 0130 00"))
	assert.True(t, IsValidIBAN("BE71096123456769"))

	assert.False(t, IsValidIBAN("DE89370400440532013001")) // checksum off by one
	assert.False(t, IsValidIBAN("DE8937"))                 // too short
	assert.False(t, IsValidIBAN("DE89-3704"))              // illegal character
	assert.False(t, IsValidIBAN(""))
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-06-15", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"20240615", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-06-15T10:30:00", time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)},
		{"202406151030", time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := ParseDate(c.in)
		require.NoError(t, err, c.in)
		assert.True(t, c.want.Equal(got), c.in)
	}

	_, err := ParseDate("")
	assert.Error(t, err)
	_, err = ParseDate("15/06/2024")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "date", perr.Field)
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestLineSubtotalAndTax(t *testing.T) {
	line := DocumentLine{
		Quantity:        d("3"),
		UnitPrice:       d("19.99"),
		DiscountPercent: d("10"),
		Taxes:           []TaxRef{{AmountType: "percent", Amount: d("21")}},
	}

	sub := LineSubtotal(line, 2)
	assert.Equal(t, "53.97", sub.StringFixed(2)) // 59.97 less 10%

	tax := LineTax(line, 2)
	assert.Equal(t, "11.33", tax.StringFixed(2))
}

func TestLineTaxFixedAmount(t *testing.T) {
	line := DocumentLine{
		Quantity:  d("4"),
		UnitPrice: d("10"),
		Taxes:     []TaxRef{{AmountType: "fixed", Amount: d("0.15")}},
	}
	assert.Equal(t, "0.60", LineTax(line, 2).StringFixed(2))
}

func TestSectionHeaderCarriesNoAmounts(t *testing.T) {
	line := DocumentLine{
		SectionHeader: true,
		Quantity:      d("1"),
		UnitPrice:     d("100"),
		Taxes:         []TaxRef{{AmountType: "percent", Amount: d("21")}},
	}
	assert.True(t, LineSubtotal(line, 2).IsZero())
	assert.True(t, LineTax(line, 2).IsZero())
}

func TestValidateTotalsMatch(t *testing.T) {
	doc := &Document{
		Kind:          KindInvoice,
		AmountUntaxed: d("100.00"),
		AmountTax:     d("21.00"),
		AmountTotal:   d("121.00"),
		Lines: []DocumentLine{{
			Quantity:  d("2"),
			UnitPrice: d("50"),
			Taxes:     []TaxRef{{AmountType: "percent", Amount: d("21")}},
		}},
	}
	ValidateTotals(doc, 2)
	assert.Empty(t, doc.Messages)
}

func TestValidateTotalsMismatchWarns(t *testing.T) {
	doc := &Document{
		Kind:          KindInvoice,
		AmountUntaxed: d("110.00"),
		AmountTotal:   d("133.10"),
		Lines: []DocumentLine{{
			Quantity:  d("2"),
			UnitPrice: d("50"),
			Taxes:     []TaxRef{{AmountType: "percent", Amount: d("21")}},
		}},
	}
	ValidateTotals(doc, 2)
	assert.NotEmpty(t, doc.Messages)
}

func TestValidateTotalsSkipsZeroHeader(t *testing.T) {
	doc := &Document{
		Kind: KindInvoice,
		Lines: []DocumentLine{{
			Quantity:  d("1"),
			UnitPrice: d("42"),
		}},
	}
	ValidateTotals(doc, 2)
	assert.Empty(t, doc.Messages)
}

func TestCheckStructure(t *testing.T) {
	doc := &Document{Kind: KindInvoice}
	var merr *MalformedDocumentError
	require.ErrorAs(t, doc.CheckStructure(), &merr)
	assert.Equal(t, KindInvoice, merr.Kind)

	doc.Lines = append(doc.Lines, DocumentLine{Description: "x"})
	assert.NoError(t, doc.CheckStructure())

	// an order response may legitimately carry no lines
	resp := &Document{Kind: KindOrderResponse}
	assert.NoError(t, resp.CheckStructure())
}

func TestAddAttachment(t *testing.T) {
	doc := &Document{}
	doc.AddAttachment("factur-x.xml", []byte("<xml/>"))
	require.Len(t, doc.Attachments, 1)
	assert.Equal(t, []byte("<xml/>"), doc.Attachments["factur-x.xml"])
}

func TestNotFoundErrorDetailsOrdered(t *testing.T) {
	err := &NotFoundError{Entity: "partner", Details: map[string]string{
		"vat":   "DE123456788",
		"name":  "Acme GmbH",
		"email": "billing@acme.example",
		"gln":   "",
	}}
	want := "no partner matches the imported document (email=billing@acme.example, name=Acme GmbH, vat=DE123456788)"
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, err.Error())
	}

	empty := &NotFoundError{Entity: "product"}
	assert.Equal(t, "no product matches the imported document (no identifying attribute provided)", empty.Error())
}
