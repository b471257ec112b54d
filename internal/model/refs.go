package model

import "github.com/shopspring/decimal"

// The *Ref types are loose descriptors: bags of optional identifying
// attributes extracted from the wire format. Resolution against the catalog
// is the matching engine's job. A ref keeps its original attributes after
// resolution (ResolvedID is attached next to them, never replacing them)
// so the import stays auditable.

// IDNumber is a scheme-qualified party identifier (e.g. GLN under
// schemeID 0088)
type IDNumber struct {
	Value    string
	SchemeID string
}

// PartyRef describes a trading party
type PartyRef struct {
	ResolvedID string

	Name    string
	VAT     string
	Email   string
	Website string
	Ref     string // internal reference code
	GLN     string
	EDICode string // proprietary interchange mailbox code
	Contact string
	Phone   string

	// PeppolEndpoint/PeppolScheme carry the party's registered e-invoicing
	// endpoint, filled in from the catalog on resolution
	PeppolEndpoint string
	PeppolScheme   string

	Street      string
	Street2     string
	StreetNum   string
	City        string
	Zip         string
	StateCode   string
	CountryCode string

	IDNumbers []IDNumber
}

// Empty reports whether the ref carries no identifying attribute at all
func (r PartyRef) Empty() bool {
	return r.Name == "" && r.VAT == "" && r.Email == "" && r.Website == "" &&
		r.Ref == "" && r.GLN == "" && r.EDICode == "" && len(r.IDNumbers) == 0
}

// ProductRef describes a product
type ProductRef struct {
	ResolvedID string

	Barcode string
	Code    string
	Name    string
}

// Empty reports whether the ref carries no identifying attribute
func (r ProductRef) Empty() bool {
	return r.Barcode == "" && r.Code == "" && r.Name == ""
}

// TaxRef describes a tax. AmountType is "percent" or "fixed"
type TaxRef struct {
	ResolvedID string

	AmountType       string
	Amount           decimal.Decimal
	UNECETypeCode    string
	UNECECategCode   string
	UNECEDueDateCode string
}

// CurrencyRef describes a currency
type CurrencyRef struct {
	ResolvedID string

	ISO         string
	Symbol      string
	ISOOrSymbol string
	CountryCode string
}

// Empty reports whether the ref carries no identifying attribute
func (r CurrencyRef) Empty() bool {
	return r.ISO == "" && r.Symbol == "" && r.ISOOrSymbol == "" && r.CountryCode == ""
}

// UOMRef describes a unit of measure
type UOMRef struct {
	ResolvedID string

	UNECECode string
	Name      string
}

// AccountRef describes a general-ledger account
type AccountRef struct {
	ResolvedID string

	Code string
}
