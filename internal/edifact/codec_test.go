package edifact

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/docexchange/internal/model"
)

const sampleInvoic = "UNB+UNOC:3+4012345000009:14+4098765000004:14+240315:1030+REF1'\n" +
	"UNH+REF1+INVOIC:D:96A:UN'\n" +
	"BGM+380+INV-100+9'\n" +
	"DTM+137:20240315:102'\n" +
	"DTM+13:20240415:102'\n" +
	"NAD+SU+4012345000009::9++Acme GmbH+Hauptstr. 1+Munich++80331+DE'\n" +
	"RFF+VA:DE123456788'\n" +
	"NAD+BY+4098765000004::9++Dupont SARL'\n" +
	"CUX+2:EUR:4'\n" +
	"LIN+1++4006381333931:EN'\n" +
	"PIA+5+WID-1:SA'\n" +
	"IMD+F++:::Widget'\n" +
	"QTY+47:10:PCE'\n" +
	"PRI+AAA:2.50'\n" +
	"MOA+203:25.00'\n" +
	"LIN+2++GAD-1:SA'\n" +
	"QTY+47:2:PCE'\n" +
	"PRI+AAA:10.00'\n" +
	"MOA+203:20.00'\n" +
	"UNS+S'\n" +
	"CNT+2:2'\n" +
	"MOA+79:45.00'\n" +
	"MOA+176:9.00'\n" +
	"MOA+77:54.00'\n" +
	"TAX+7+VAT+++:::20+S'\n" +
	"MOA+124:9.00'\n" +
	"UNT+26+REF1'\n" +
	"UNZ+1+REF1'\n"

func TestDecodeInvoic(t *testing.T) {
	doc, err := Decode([]byte(sampleInvoic))

	require.NoError(t, err)
	assert.Equal(t, model.KindInvoice, doc.Kind)
	assert.Equal(t, "INV-100", doc.Reference)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), doc.IssueDate)
	assert.Equal(t, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), doc.DueDate)
	assert.Equal(t, "EUR", doc.Currency.ISO)

	assert.Equal(t, "Acme GmbH", doc.Partner.Name)
	assert.Equal(t, "4012345000009", doc.Partner.GLN)
	assert.Equal(t, "DE123456788", doc.Partner.VAT)
	assert.Equal(t, "80331", doc.Partner.Zip)
	assert.Equal(t, "DE", doc.Partner.CountryCode)
	assert.Equal(t, "Dupont SARL", doc.Company.Name)
	assert.Equal(t, "4098765000004", doc.Company.GLN)

	require.Len(t, doc.Lines, 2)
	l1 := doc.Lines[0]
	assert.Equal(t, "4006381333931", l1.Product.Barcode)
	assert.Equal(t, "WID-1", l1.Product.Code)
	assert.Equal(t, "Widget", l1.Description)
	assert.True(t, l1.Quantity.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "PCE", l1.UOM.UNECECode)
	assert.True(t, l1.UnitPrice.Equal(decimal.RequireFromString("2.50")))
	assert.True(t, l1.PriceSubtotal.Equal(decimal.RequireFromString("25.00")))

	// The single summary tax bucket spreads over every line
	require.Len(t, l1.Taxes, 1)
	assert.True(t, l1.Taxes[0].Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "S", l1.Taxes[0].UNECECategCode)
	require.Len(t, doc.Lines[1].Taxes, 1)

	assert.True(t, doc.AmountUntaxed.Equal(decimal.RequireFromString("45.00")))
	assert.True(t, doc.AmountTax.Equal(decimal.RequireFromString("9.00")))
	assert.True(t, doc.AmountTotal.Equal(decimal.RequireFromString("54.00")))
	assert.Empty(t, doc.Messages)
}

func TestDecodeRefundViaBGM381(t *testing.T) {
	data := strings.Replace(sampleInvoic, "BGM+380", "BGM+381", 1)

	doc, err := Decode([]byte(data))

	require.NoError(t, err)
	assert.Equal(t, model.KindRefund, doc.Kind)
}

func TestLinWithoutQtyPriFails(t *testing.T) {
	// The second line group lost its QTY and PRI; the UNT count is
	// adjusted so only the parity assertion can trip
	data := "UNH+R1+INVOIC:D:96A:UN'" +
		"BGM+380+INV-1+9'" +
		"CUX+2:EUR:4'" +
		"LIN+1++4006381333931:EN'" +
		"QTY+47:1:PCE'" +
		"PRI+AAA:5.00'" +
		"LIN+2++GAD-1:SA'" +
		"MOA+203:10.00'" +
		"UNS+S'" +
		"UNT+10+R1'"

	_, err := Decode([]byte(data))

	var mal *model.MalformedInterchangeError
	require.ErrorAs(t, err, &mal)
	assert.Equal(t, "LIN", mal.Segment)
}

func TestUNTCountMismatchFails(t *testing.T) {
	data := strings.Replace(sampleInvoic, "UNT+26", "UNT+99", 1)

	_, err := Decode([]byte(data))

	var mal *model.MalformedInterchangeError
	require.ErrorAs(t, err, &mal)
	assert.Equal(t, "UNT", mal.Segment)
}

func TestUnsupportedMessageType(t *testing.T) {
	data := "UNH+R1+PRICAT:D:96A:UN'BGM+9+X'UNT+3+R1'"

	_, err := Decode([]byte(data))

	var uv *model.UnsupportedVariantError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "PRICAT", uv.Root)
}

func TestTokenizeUNAOverride(t *testing.T) {
	data := "UNA|^,! _UNH^R1^INVOIC|D|96A|UN_"

	segments, syntax, err := Tokenize([]byte(data))

	require.NoError(t, err)
	assert.Equal(t, byte('|'), syntax.ComponentSep)
	assert.Equal(t, byte('_'), syntax.Terminator)
	require.Len(t, segments, 1)
	assert.Equal(t, "UNH", segments[0].Tag)
	assert.Equal(t, "INVOIC", segments[0].comp(1, 0))
	assert.Equal(t, "96A", segments[0].comp(1, 2))
}

func TestTokenizeReleaseCharacter(t *testing.T) {
	data := "FTX+AAI+++Name?: Acme ?+ Co'"

	segments, _, err := Tokenize([]byte(data))

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "Name: Acme + Co", segments[0].comp(3, 0))
}

func TestTokenizeMissingTerminatorFails(t *testing.T) {
	_, _, err := Tokenize([]byte("UNH+R1+INVOIC"))

	var mal *model.MalformedInterchangeError
	require.ErrorAs(t, err, &mal)
}

func sampleInvoiceDoc() *model.Document {
	return &model.Document{
		Kind:      model.KindInvoice,
		Reference: "INV-100",
		IssueDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		Currency:  model.CurrencyRef{ISO: "EUR"},
		Partner: model.PartyRef{
			Name: "Dupont SARL", GLN: "4098765000004", VAT: "FR61542051180",
		},
		Company: model.PartyRef{
			Name: "Acme GmbH", GLN: "4012345000009", VAT: "DE123456788",
		},
		Lines: []model.DocumentLine{
			{
				Sequence: 1, Description: "Widget",
				Product:   model.ProductRef{Barcode: "4006381333931", Code: "WID-1"},
				Quantity:  decimal.NewFromInt(10),
				UOM:       model.UOMRef{UNECECode: "PCE"},
				UnitPrice: decimal.RequireFromString("2.50"),
				Taxes: []model.TaxRef{
					{AmountType: "percent", Amount: decimal.NewFromInt(20), UNECECategCode: "S"},
				},
			},
			{
				Sequence: 2, Description: "Gadget",
				Product:   model.ProductRef{Code: "GAD-1"},
				Quantity:  decimal.NewFromInt(2),
				UOM:       model.UOMRef{UNECECode: "PCE"},
				UnitPrice: decimal.RequireFromString("10.00"),
				Taxes: []model.TaxRef{
					{AmountType: "percent", Amount: decimal.NewFromInt(20), UNECECategCode: "S"},
				},
			},
		},
	}
}

func TestEncodeDecodeInvoiceRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.Reference = "REF1"
	doc := sampleInvoiceDoc()

	data, err := enc.EncodeInvoice(doc)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "INV-100", got.Reference)
	// Decode reads inbound, so the roles swap: our company was the
	// supplier, the counter-party the buyer
	assert.Equal(t, doc.Company.VAT, got.Partner.VAT)
	assert.Equal(t, doc.Company.GLN, got.Partner.GLN)
	assert.Equal(t, doc.Partner.VAT, got.Company.VAT)

	require.Len(t, got.Lines, 2)
	assert.True(t, got.Lines[0].Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, got.Lines[0].UnitPrice.Equal(decimal.RequireFromString("2.50")))
	assert.Equal(t, "4006381333931", got.Lines[0].Product.Barcode)
	assert.Equal(t, "WID-1", got.Lines[0].Product.Code)

	// 45.00 + 20% tax
	assert.True(t, got.AmountUntaxed.Equal(decimal.RequireFromString("45.00")))
	assert.True(t, got.AmountTax.Equal(decimal.RequireFromString("9.00")))
	assert.True(t, got.AmountTotal.Equal(decimal.RequireFromString("54.00")))
	assert.Empty(t, got.Messages)
}

func TestEncodeOrderRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.Reference = "REF2"
	doc := sampleInvoiceDoc()
	doc.Kind = model.KindOrder
	doc.Origin = "RFQ-55"

	data, err := enc.EncodeOrder(doc)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, model.KindOrder, got.Kind)
	assert.Equal(t, "INV-100", got.Reference)
	assert.Equal(t, "RFQ-55", got.Origin)
	// An ORDERS message reads from the seller's side: the buyer NAD is
	// the counter-party
	assert.Equal(t, doc.Company.GLN, got.Partner.GLN)
	require.Len(t, got.Lines, 2)
}

func TestEncodeMissingGLNFails(t *testing.T) {
	enc := NewEncoder()
	doc := sampleInvoiceDoc()
	doc.Partner.GLN = ""

	_, err := enc.EncodeInvoice(doc)

	var missing *model.MissingPartyIdentifierError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Dupont SARL", missing.Party)
}

func TestEncodeUNTCountMatchesSegments(t *testing.T) {
	enc := NewEncoder()
	enc.Reference = "REF3"

	data, err := enc.EncodeInvoice(sampleInvoiceDoc())
	require.NoError(t, err)

	segments, _, err := Tokenize(data)
	require.NoError(t, err)

	unh, unt := -1, -1
	for i, s := range segments {
		switch s.Tag {
		case "UNH":
			unh = i
		case "UNT":
			unt = i
		}
	}
	require.GreaterOrEqual(t, unh, 0)
	require.Greater(t, unt, unh)
	assert.Equal(t, strconv.Itoa(unt-unh+1), segments[unt].comp(0, 0))
}
