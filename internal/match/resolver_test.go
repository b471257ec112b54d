package match

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/docexchange/internal/model"
)

func testCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		Partners: []Partner{
			{
				ID: "P1", Name: "Total SA", VAT: "FR61542051180",
				Website: "www.total.com", IsCompany: true, IsSupplier: true,
				CountryCode: "FR",
			},
			{
				ID: "P2", Name: "Acme GmbH", VAT: "DE123456788",
				Email: "billing@acme.example", Ref: "ACME01",
				GLN: "4012345000009", EDICode: "ACME-MBX",
				IsCompany: true, IsSupplier: true,
				CountryCode:    "DE",
				PeppolEndpoint: "DE123456788", PeppolScheme: "9930",
			},
			{
				ID: "P3", Name: "Acme Lager", ParentID: "P2",
				AddressType: "delivery", Zip: "80331", CountryCode: "DE",
			},
			{
				ID: "P4", Name: "Dupont SARL", IsCompany: true,
				IsCustomer: true, CountryCode: "FR", Zip: "75008",
			},
		},
		Products: []Product{
			{ID: "PR1", Name: "Widget", Barcode: "4006381333931", Code: "WID-1", UOMID: "U1"},
			{ID: "PR2", Name: "Gadget", Code: "GAD-1", UOMID: "U1",
				SellerCodes: map[string]string{"P2": "SUP-GAD"}},
		},
		Taxes: []Tax{
			{ID: "T20", Name: "VAT 20%", AmountType: "percent",
				Amount: decimal.NewFromInt(20), TypeUse: "purchase"},
			{ID: "T55", Name: "VAT 5.5%", AmountType: "percent",
				Amount: decimal.RequireFromString("5.5"), TypeUse: "purchase"},
		},
		Currencies: []Currency{
			{ID: "EUR", ISO: "EUR", Symbol: "€", DecimalPlaces: 2, CountryCodes: []string{"FR", "DE"}},
			{ID: "USD", ISO: "USD", Symbol: "$", DecimalPlaces: 2, CountryCodes: []string{"US"}},
			{ID: "CHF", ISO: "CHF", Symbol: "CHF", DecimalPlaces: 2, CountryCodes: []string{"CH"}},
		},
		UOMs: []UOM{
			{ID: "U1", Name: "Units", UNECECode: "C62"},
			{ID: "U2", Name: "kg", UNECECode: "KGM"},
		},
		AccountSet: []Account{
			{ID: "A1", Code: "611000", Name: "Subcontracting"},
			{ID: "A2", Code: "622000", Name: "Fees"},
		},
		Countries:  []string{"FR", "DE", "US", "CH"},
		Company:    Currency{ID: "EUR", ISO: "EUR", Symbol: "€", DecimalPlaces: 2},
		DefaultUOM: UOM{ID: "U1", Name: "Units", UNECECode: "C62"},
	}
}

func TestPartnerByVAT(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.PartyRef{VAT: "FR 61542051180"}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Equal(t, "P1", ref.ResolvedID)
	assert.Empty(t, w)
}

func TestPartnerByEmailDomain(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.PartyRef{
		Name:  "TOTAL",
		Email: "alexis.delattre@total.com",
	}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Equal(t, "P1", ref.ResolvedID, "should match Total SA via its website domain")
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "domain")
}

func TestPartnerGenericDomainNotFuzzyMatched(t *testing.T) {
	cat := testCatalog()
	cat.Partners[0].Website = "www.gmail.com"
	r := NewResolver(cat)
	var w model.Messages
	ref := model.PartyRef{Email: "someone@gmail.com"}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Empty(t, ref.ResolvedID)
}

func TestPartnerPriorityOrder(t *testing.T) {
	// A ref carrying both a VAT pointing at P2 and a name pointing at P1
	// must resolve via the VAT
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.PartyRef{Name: "Total SA", VAT: "DE123456788"}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Equal(t, "P2", ref.ResolvedID)
}

func TestPartnerByGLN(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.PartyRef{
		IDNumbers: []model.IDNumber{{Value: "4012345000009", SchemeID: "0088"}},
	}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Equal(t, "P2", ref.ResolvedID)
}

func TestPartnerByEDICode(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.PartyRef{EDICode: "ACME-MBX"}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Equal(t, "P2", ref.ResolvedID)
	assert.Empty(t, w)
}

func TestPartnerCountryNarrowsAmbiguousName(t *testing.T) {
	cat := testCatalog()
	cat.Partners = append(cat.Partners, Partner{
		ID: "P5", Name: "Total SA", IsCompany: true, IsSupplier: true,
		CountryCode: "DE",
	})
	r := NewResolver(cat)
	var w model.Messages
	// Two suppliers share the name; the stated country picks one
	ref := model.PartyRef{Name: "Total SA", CountryCode: "DE"}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Equal(t, "P5", ref.ResolvedID)
}

func TestPartnerUnknownCountryWarnsAndIsIgnored(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.PartyRef{Name: "Total SA", CountryCode: "XX"}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Equal(t, "P1", ref.ResolvedID, "matching proceeds without the country filter")
	require.NotEmpty(t, w)
	assert.Contains(t, w[0], "country code")
}

func TestPartnerAdoptsPeppolEndpoint(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.PartyRef{VAT: "DE123456788"}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Equal(t, "P2", ref.ResolvedID)
	assert.Equal(t, "DE123456788", ref.PeppolEndpoint)
	assert.Equal(t, "9930", ref.PeppolScheme)
}

func TestPartnerVATMissWarnsAndFallsThrough(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.PartyRef{VAT: "FR99999999999", Name: "Total SA"}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Equal(t, "P1", ref.ResolvedID, "name match should still succeed")
	require.NotEmpty(t, w)
	assert.Contains(t, w[0], "VAT")
}

func TestPartnerNotFoundStrict(t *testing.T) {
	r := NewResolver(testCatalog())
	r.Strict = true
	ref := model.PartyRef{Name: "Nobody Ltd"}

	err := r.Partner(&ref, nil, PartnerSupplier)

	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "partner", nf.Entity)
}

func TestPartnerNotFoundLenient(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.PartyRef{Name: "Nobody Ltd"}

	err := r.Partner(&ref, &w, PartnerSupplier)

	require.NoError(t, err)
	assert.Empty(t, ref.ResolvedID)
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "no partner matches")
}

func TestShippingPartnerChildMatch(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	anchor := model.PartyRef{ResolvedID: "P2"}
	ref := model.PartyRef{Zip: "80331", CountryCode: "DE"}

	err := r.ShippingPartner(&ref, &anchor, &w)

	require.NoError(t, err)
	assert.Equal(t, "P3", ref.ResolvedID)
	assert.Empty(t, w, "a delivery child of the anchor needs no warning")
}

func TestShippingPartnerWidenedMatchWarns(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	anchor := model.PartyRef{ResolvedID: "P1"}
	ref := model.PartyRef{Zip: "75008", CountryCode: "FR"}

	err := r.ShippingPartner(&ref, &anchor, &w)

	require.NoError(t, err)
	assert.Equal(t, "P4", ref.ResolvedID)
	require.NotEmpty(t, w)
	assert.Contains(t, w[0], "check")
}

func TestCurrencyCascade(t *testing.T) {
	tests := []struct {
		name     string
		ref      model.CurrencyRef
		wantID   string
		wantWarn bool
	}{
		{"iso code", model.CurrencyRef{ISO: "usd"}, "USD", false},
		{"unique symbol", model.CurrencyRef{Symbol: "$"}, "USD", false},
		{"iso or symbol", model.CurrencyRef{ISOOrSymbol: "CHF"}, "CHF", false},
		{"country", model.CurrencyRef{CountryCode: "US"}, "USD", false},
		{"unknown falls back to company", model.CurrencyRef{ISO: "XXX"}, "EUR", true},
		{"absent falls back silently", model.CurrencyRef{}, "EUR", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(testCatalog())
			var w model.Messages
			ref := tt.ref

			err := r.Currency(&ref, &w)

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, ref.ResolvedID)
			if tt.wantWarn {
				assert.NotEmpty(t, w)
			} else {
				assert.Empty(t, w)
			}
		})
	}
}

func TestProductCascade(t *testing.T) {
	r := NewResolver(testCatalog())
	seller := model.PartyRef{ResolvedID: "P2"}

	tests := []struct {
		name   string
		ref    model.ProductRef
		wantID string
	}{
		{"barcode", model.ProductRef{Barcode: "4006381333931"}, "PR1"},
		{"internal code", model.ProductRef{Code: "WID-1"}, "PR1"},
		{"seller code", model.ProductRef{Code: "SUP-GAD"}, "PR2"},
		{"barcode via code field", model.ProductRef{Code: "4006381333931"}, "PR1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w model.Messages
			ref := tt.ref

			err := r.Product(&ref, &w, &seller)

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, ref.ResolvedID)
		})
	}
}

func TestUOMAliases(t *testing.T) {
	r := NewResolver(testCatalog())

	for _, code := range []string{"C62", "NIU", "ZZ"} {
		var w model.Messages
		ref := model.UOMRef{UNECECode: code}
		err := r.UOM(&ref, &w, nil)
		require.NoError(t, err)
		assert.Equal(t, "U1", ref.ResolvedID, "code %s", code)
		assert.Empty(t, w)
	}
}

func TestUOMFallbackToProductUnit(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.UOMRef{UNECECode: "XAB"}
	product := model.ProductRef{ResolvedID: "PR1"}

	err := r.UOM(&ref, &w, &product)

	require.NoError(t, err)
	assert.Equal(t, "U1", ref.ResolvedID)
	assert.NotEmpty(t, w)
}

func TestUOMStaleResolvedIDRematched(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.UOMRef{ResolvedID: "GONE", UNECECode: "KGM"}

	err := r.UOM(&ref, &w, nil)

	require.NoError(t, err)
	assert.Equal(t, "U2", ref.ResolvedID)
}

func TestTaxRateComparedAtFourDigits(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.TaxRef{
		AmountType: "percent",
		Amount:     decimal.RequireFromString("5.50004"),
	}

	err := r.Tax(&ref, &w, "purchase", nil)

	require.NoError(t, err)
	assert.Equal(t, "T55", ref.ResolvedID)
}

func TestTaxesFoldDuplicates(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	taxes := []model.TaxRef{
		{AmountType: "percent", Amount: decimal.NewFromInt(20)},
		{AmountType: "percent", Amount: decimal.RequireFromString("20.0")},
	}

	out, err := r.Taxes(taxes, &w, "purchase", nil)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "T20", out[0].ResolvedID)
}

func TestAccountExactMatch(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	ref := model.AccountRef{Code: "611000"}

	err := r.Account(&ref, &w)

	require.NoError(t, err)
	assert.Equal(t, "A1", ref.ResolvedID)
	assert.Empty(t, w)
}

func TestAccountApproximateMatchWarns(t *testing.T) {
	r := NewResolver(testCatalog())
	var w model.Messages
	// Chart uses 6 digits, the document 8
	ref := model.AccountRef{Code: "61100000"}

	err := r.Account(&ref, &w)

	require.NoError(t, err)
	assert.Equal(t, "A1", ref.ResolvedID)
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "Approximate match")
}

func TestResolveAllInvoice(t *testing.T) {
	r := NewResolver(testCatalog())
	doc := &model.Document{
		Kind:      model.KindInvoice,
		Reference: "INV-1001",
		Currency:  model.CurrencyRef{ISO: "EUR"},
		Partner:   model.PartyRef{VAT: "DE123456788"},
		IBAN:      "DE89370400440532013000",
		Lines: []model.DocumentLine{
			{
				Product:   model.ProductRef{Code: "WID-1"},
				Quantity:  decimal.NewFromInt(2),
				UOM:       model.UOMRef{UNECECode: "C62"},
				UnitPrice: decimal.RequireFromString("10.00"),
				Taxes: []model.TaxRef{
					{AmountType: "percent", Amount: decimal.NewFromInt(20)},
				},
			},
		},
		AmountUntaxed: decimal.RequireFromString("20.00"),
		AmountTax:     decimal.RequireFromString("4.00"),
		AmountTotal:   decimal.RequireFromString("24.00"),
	}

	err := r.ResolveAll(doc)

	require.NoError(t, err)
	assert.Equal(t, "EUR", doc.Currency.ResolvedID)
	assert.Equal(t, "P2", doc.Partner.ResolvedID)
	assert.Equal(t, "PR1", doc.Lines[0].Product.ResolvedID)
	assert.Equal(t, "U1", doc.Lines[0].UOM.ResolvedID)
	assert.Equal(t, "T20", doc.Lines[0].Taxes[0].ResolvedID)
	assert.Equal(t, "DE89370400440532013000", doc.IBAN)
	assert.Empty(t, doc.Messages)
}

func TestResolveAllDropsInvalidIBAN(t *testing.T) {
	r := NewResolver(testCatalog())
	doc := &model.Document{
		Kind:     model.KindInvoice,
		Currency: model.CurrencyRef{ISO: "EUR"},
		IBAN:     "DE00000000000000000000",
		Lines:    []model.DocumentLine{{Quantity: decimal.NewFromInt(1)}},
	}

	err := r.ResolveAll(doc)

	require.NoError(t, err)
	assert.Empty(t, doc.IBAN)
	require.NotEmpty(t, doc.Messages)
	assert.Contains(t, doc.Messages[0], "IBAN")
}
