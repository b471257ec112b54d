package pdftemplate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/docexchange/internal/match"
	"github.com/rezonia/docexchange/internal/model"
)

const acmeTemplate = `
name: acme_invoice
keywords:
  - "ACME GmbH"
  - "Rechnung"
exclude_keywords:
  - "Gutschrift"
options:
  decimal_separator: ","
fields:
  invoice_number: 'Rechnung Nr\. (\S+)'
  date:
    pattern: 'Datum: (\d{2}\.\d{2}\.\d{4})'
    type: date
    date_format: "02.01.2006"
  amount_total:
    pattern: 'Gesamtbetrag: ([\d.,]+) EUR'
    type: float
  amount_untaxed:
    pattern: 'Nettobetrag: ([\d.,]+) EUR'
    type: float
  currency:
    default: EUR
  partner_vat: 'USt-IdNr\.: (\S+)'
required_fields:
  - invoice_number
`

const acmeText = `ACME GmbH
Rechnung Nr. RE-2024-091
Datum: 15.03.2024
USt-IdNr.: DE123456788

Nettobetrag: 1.041,18 EUR
Gesamtbetrag: 1.239,00 EUR
`

func mustTemplate(t *testing.T, yml string) *Template {
	t.Helper()
	tpl, err := ParseTemplate([]byte(yml))
	require.NoError(t, err)
	return tpl
}

func TestDetectFirstMatch(t *testing.T) {
	engine := NewEngine(mustTemplate(t, acmeTemplate))

	tpl, err := engine.Detect(acmeText)

	require.NoError(t, err)
	assert.Equal(t, "acme_invoice", tpl.Name)
}

func TestDetectExcludeKeyword(t *testing.T) {
	engine := NewEngine(mustTemplate(t, acmeTemplate))

	_, err := engine.Detect("ACME GmbH Rechnung Gutschrift")

	var nt *model.NoTemplateError
	require.ErrorAs(t, err, &nt)
	assert.Equal(t, 1, nt.Tried)
}

func TestHeaderExtraction(t *testing.T) {
	engine := NewEngine(mustTemplate(t, acmeTemplate))

	res, err := engine.Extract(acmeText)

	require.NoError(t, err)
	assert.Equal(t, "RE-2024-091", res.Fields["invoice_number"])
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), res.Fields["date"])
	assert.Equal(t, "EUR", res.Fields["currency"], "default applies when no pattern is given")
	// German locale: "." thousands, "," decimals
	assert.True(t, res.Fields["amount_total"].(decimal.Decimal).Equal(decimal.RequireFromString("1239.00")))
	assert.True(t, res.Fields["amount_untaxed"].(decimal.Decimal).Equal(decimal.RequireFromString("1041.18")))
}

func TestRequiredFieldMissingRejectsWholeParse(t *testing.T) {
	engine := NewEngine(mustTemplate(t, acmeTemplate))
	// Keywords still match but the invoice number line is absent
	text := "ACME GmbH\nRechnung\nDatum: 15.03.2024\n"

	res, err := engine.Extract(text)

	var te *model.TemplateExtractionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "acme_invoice", te.Template)
	assert.Equal(t, []string{"invoice_number"}, te.Missing)
	assert.Nil(t, res, "no partial result on a required-field failure")
}

func TestDecimalSeparatorSentinelSwap(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		sep  string
		want string
	}{
		{"german", "1.234,56", ",", "1234.56"},
		{"english", "1,234.56", ".", "1234.56"},
		{"swiss apostrophe", "1'234.56", ".", "1234.56"},
		{"plain", "42", ".", "42"},
		{"decimal only", "0,5", ",", "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseLocalizedDecimal(tt.raw, tt.sep)
			require.NoError(t, err)
			assert.True(t, d.Equal(decimal.RequireFromString(tt.want)), "got %s", d)
		})
	}
}

func TestAccentAndCaseOptions(t *testing.T) {
	tpl := mustTemplate(t, `
name: fr_invoice
keywords:
  - "seche-cheveux"
options:
  remove_accents: true
  lowercase: true
fields:
  invoice_number: 'facture (\S+)'
`)
	engine := NewEngine(tpl)

	res, err := engine.Extract("Sèche-Cheveux SARL\nFACTURE F-001\n")

	require.NoError(t, err)
	assert.Equal(t, "f-001", res.Fields["invoice_number"])
}

func TestFieldMappingTable(t *testing.T) {
	tpl := mustTemplate(t, `
name: mapped
keywords: ["Invoice"]
fields:
  currency:
    pattern: 'Currency: (\S+)'
    map:
      Euro: EUR
`)
	engine := NewEngine(tpl)

	res, err := engine.Extract("Invoice\nCurrency: Euro\n")

	require.NoError(t, err)
	assert.Equal(t, "EUR", res.Fields["currency"])
}

const lineTemplate = `
name: lined
keywords: ["Supplies Ltd"]
fields:
  invoice_number: 'INV (\S+)'
lines:
  start_block: 'Description\s+Qty\s+Price'
  end_block: 'Subtotal'
  start: '^\s*[A-Z]{3}-\d+'
  fields:
    product_code:
      pattern: '([A-Z]{3}-\d+)'
    quantity:
      pattern: '\s(\d+(?:\.\d+)?)\s+[\d.]+\s*$'
      type: float
    price_unit:
      pattern: '\s([\d.]+)\s*$'
      type: float
    description:
      pattern: '[A-Z]{3}-\d+\s+(.*?)\s+\d'
required_fields:
  - invoice_number
`

const linedText = `Supplies Ltd
INV 1001
Description   Qty   Price
WID-1  Widget large   2   25.00
GAD-7  Gadget
  with a long name   1   50.00
Subtotal 100.00
`

func TestLineBlockExtraction(t *testing.T) {
	engine := NewEngine(mustTemplate(t, lineTemplate))

	res, err := engine.Extract(linedText)

	require.NoError(t, err)
	require.Len(t, res.Lines, 2)

	first := res.Lines[0]
	assert.Equal(t, "WID-1", first["product_code"])
	assert.True(t, first["quantity"].(decimal.Decimal).Equal(decimal.NewFromInt(2)))
	assert.True(t, first["price_unit"].(decimal.Decimal).Equal(decimal.RequireFromString("25.00")))

	// The second record spans two physical lines, joined before the
	// field rules run
	second := res.Lines[1]
	assert.Equal(t, "GAD-7", second["product_code"])
	assert.True(t, second["quantity"].(decimal.Decimal).Equal(decimal.NewFromInt(1)))
}

func TestResultToDocument(t *testing.T) {
	engine := NewEngine(mustTemplate(t, acmeTemplate))
	res, err := engine.Extract(acmeText)
	require.NoError(t, err)

	doc := res.ToDocument()

	assert.Equal(t, model.KindInvoice, doc.Kind)
	assert.Equal(t, "RE-2024-091", doc.Reference)
	assert.Equal(t, "DE123456788", doc.Partner.VAT)
	assert.Equal(t, "EUR", doc.Currency.ISOOrSymbol)
	assert.True(t, doc.AmountTotal.Equal(decimal.RequireFromString("1239.00")))
	// Header-only extraction synthesizes one line from the untaxed amount
	require.Len(t, doc.Lines, 1)
	assert.True(t, doc.Lines[0].UnitPrice.Equal(decimal.RequireFromString("1041.18")))
}

const searchTemplate = `
name: searched
keywords: ["ACME GmbH"]
fields:
  invoice_number: 'Rechnung Nr\. (\S+)'
  partner_id:
    pattern: 'USt-IdNr\.: (\S+)'
    search_field: partner.vat
lines:
  start_block: 'Description\s+Qty'
  end_block: 'Subtotal'
  fields:
    product_id:
      pattern: '^([A-Z]{3}-\d+)'
      search_field: product.code
    quantity:
      pattern: '\s(\d+)\s*$'
      type: float
`

const searchText = `ACME GmbH
Rechnung Nr. RE-2024-091
USt-IdNr.: DE123456788
Description   Qty
WID-1   2
Subtotal
`

func searchCatalog() *match.MemoryCatalog {
	return &match.MemoryCatalog{
		Partners: []match.Partner{{ID: "P7", Name: "Acme GmbH", VAT: "DE123456788"}},
		Products: []match.Product{{ID: "PR1", Name: "Widget", Code: "WID-1"}},
	}
}

func TestSearchFieldResolvesToCatalogID(t *testing.T) {
	engine := NewEngine(mustTemplate(t, searchTemplate))
	engine.Catalog = searchCatalog()

	res, err := engine.Extract(searchText)

	require.NoError(t, err)
	assert.Equal(t, "P7", res.Fields["partner_id"])
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "PR1", res.Lines[0]["product_id"])

	doc := res.ToDocument()
	assert.Equal(t, "P7", doc.Partner.ResolvedID)
	assert.Equal(t, "PR1", doc.Lines[0].Product.ResolvedID)
}

func TestSearchFieldMissKeepsLiteral(t *testing.T) {
	engine := NewEngine(mustTemplate(t, searchTemplate))
	engine.Catalog = &match.MemoryCatalog{}

	res, err := engine.Extract(searchText)

	require.NoError(t, err)
	assert.Equal(t, "DE123456788", res.Fields["partner_id"])
	assert.NotEmpty(t, res.Messages)
}

func TestSearchFieldWithoutCatalogKeepsLiteral(t *testing.T) {
	engine := NewEngine(mustTemplate(t, searchTemplate))

	res, err := engine.Extract(searchText)

	require.NoError(t, err)
	assert.Equal(t, "DE123456788", res.Fields["partner_id"])
}

func TestUnknownSearchFieldRejected(t *testing.T) {
	_, err := ParseTemplate([]byte(`
name: bad
keywords: ["x"]
fields:
  f:
    pattern: 'a(b)c'
    search_field: partner.shoe_size
`))

	require.Error(t, err)
}

func TestTemplateWithoutKeywordsRejected(t *testing.T) {
	_, err := ParseTemplate([]byte("name: bad\nfields:\n  x: 'a(b)c'\n"))

	require.Error(t, err)
}

func TestPatternNeedsExactlyOneGroup(t *testing.T) {
	_, err := ParseTemplate([]byte(`
name: bad
keywords: ["x"]
fields:
  f: '(\d+)-(\d+)'
`))

	require.Error(t, err)
}
