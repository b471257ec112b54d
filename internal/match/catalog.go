// Package match resolves loose document descriptors (VAT numbers, GLN
// codes, free-text names) to catalog entities through a deterministic,
// prioritized cascade of strategies. Every weaker-than-exact match appends
// a human-readable warning; ambiguity never produces a result.
package match

import "github.com/shopspring/decimal"

// Partner is a catalog trading party
type Partner struct {
	ID          string
	Name        string
	VAT         string
	Email       string
	Website     string
	Ref         string
	GLN         string
	EDICode     string
	Zip         string
	StateCode   string
	CountryCode string
	ParentID    string
	// AddressType distinguishes child contacts: "contact", "delivery",
	// "invoice"
	AddressType string
	IsCompany   bool
	IsSupplier  bool
	IsCustomer  bool

	PeppolEndpoint string
	PeppolScheme   string
}

// Product is a catalog product
type Product struct {
	ID      string
	Name    string
	Barcode string
	Code    string
	UOMID   string
	// SellerCodes maps a supplier partner ID to the code that supplier
	// uses for this product
	SellerCodes map[string]string
}

// Tax is a catalog tax
type Tax struct {
	ID               string
	Name             string
	AmountType       string // "percent" or "fixed"
	Amount           decimal.Decimal
	TypeUse          string // "purchase" or "sale"
	PriceInclude     bool
	UNECETypeCode    string
	UNECECategCode   string
	UNECEDueDateCode string
}

// Currency is a catalog currency
type Currency struct {
	ID            string
	ISO           string
	Symbol        string
	DecimalPlaces int32
	CountryCodes  []string
}

// UOM is a catalog unit of measure
type UOM struct {
	ID        string
	Name      string
	UNECECode string
}

// Account is a catalog general-ledger account
type Account struct {
	ID   string
	Code string
	Name string
}

// PartnerQuery narrows a partner search. Zero-value fields are not used
// as filters
type PartnerQuery struct {
	VAT          string
	Email        string
	EmailDomain  string // matches the domain of Email or Website
	Name         string // case-insensitive exact
	Ref          string
	GLN          string
	EDICode      string
	Zip          string
	StateCode    string
	CountryCode  string
	ParentID     string
	AddressType  string
	OnlyCompany  bool
	OnlySupplier bool
	OnlyCustomer bool
}

// ProductQuery narrows a product search
type ProductQuery struct {
	Barcode       string
	Code          string // matches barcode or internal code
	SellerID      string
	SellerCode    string
}

// TaxQuery narrows a tax search
type TaxQuery struct {
	AmountType     string
	TypeUse        string
	PriceInclude   *bool
	UNECETypeCode  string
	UNECECategCode string
}

// CurrencyQuery narrows a currency search
type CurrencyQuery struct {
	ISO         string
	Symbol      string
	CountryCode string
}

// UOMQuery narrows a unit-of-measure search
type UOMQuery struct {
	UNECECode  string
	NamePrefix string
}

// Catalog is the read-only lookup provider the matching engine calls into.
// Implementations return zero, one or many entities per query; the engine
// decides what multiplicity means. Consistency of a shared store is the
// implementation's responsibility, the engine never retries
type Catalog interface {
	FindPartners(q PartnerQuery) []Partner
	FindProducts(q ProductQuery) []Product
	FindTaxes(q TaxQuery) []Tax
	FindCurrencies(q CurrencyQuery) []Currency
	FindUOMs(q UOMQuery) []UOM
	Accounts() []Account
	PartnerByID(id string) (Partner, bool)
	ProductByID(id string) (Product, bool)
	UOMByID(id string) (UOM, bool)
	CompanyCurrency() Currency
	FallbackUOM() UOM
	HasCountry(code string) bool
}
