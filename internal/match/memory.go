package match

import "strings"

// MemoryCatalog is an in-memory Catalog used by the CLI and the tests.
// Production deployments plug their own store behind the Catalog interface
type MemoryCatalog struct {
	Partners   []Partner
	Products   []Product
	Taxes      []Tax
	Currencies []Currency
	UOMs       []UOM
	AccountSet []Account
	Countries  []string
	Company    Currency
	DefaultUOM UOM
}

func domainOf(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		addr = addr[i+1:]
	}
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimPrefix(addr, "www.")
	if i := strings.Index(addr, "/"); i >= 0 {
		addr = addr[:i]
	}
	parts := strings.Split(addr, ".")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, ".")
}

// FindPartners returns partners matching all set filters
func (c *MemoryCatalog) FindPartners(q PartnerQuery) []Partner {
	var res []Partner
	for _, p := range c.Partners {
		if q.VAT != "" && !strings.EqualFold(strings.ReplaceAll(p.VAT, " ", ""), q.VAT) {
			continue
		}
		if q.Email != "" && !strings.EqualFold(p.Email, q.Email) {
			continue
		}
		if q.EmailDomain != "" &&
			domainOf(p.Website) != q.EmailDomain && domainOf(p.Email) != q.EmailDomain {
			continue
		}
		if q.Name != "" && !strings.EqualFold(strings.TrimSpace(p.Name), q.Name) {
			continue
		}
		if q.Ref != "" && p.Ref != q.Ref {
			continue
		}
		if q.GLN != "" && p.GLN != q.GLN {
			continue
		}
		if q.EDICode != "" && p.EDICode != q.EDICode {
			continue
		}
		if q.Zip != "" && p.Zip != q.Zip {
			continue
		}
		// country/state filters keep partners with the field unset,
		// mirroring the permissive catalog domain of the import engine
		if q.CountryCode != "" && p.CountryCode != "" && !strings.EqualFold(p.CountryCode, q.CountryCode) {
			continue
		}
		if q.StateCode != "" && p.StateCode != "" && !strings.EqualFold(p.StateCode, q.StateCode) {
			continue
		}
		if q.ParentID != "" && p.ParentID != q.ParentID {
			continue
		}
		if q.AddressType != "" && p.AddressType != q.AddressType {
			continue
		}
		if q.OnlyCompany && !p.IsCompany {
			continue
		}
		if q.OnlySupplier && !p.IsSupplier {
			continue
		}
		if q.OnlyCustomer && !p.IsCustomer {
			continue
		}
		res = append(res, p)
	}
	return res
}

// FindProducts returns products matching all set filters
func (c *MemoryCatalog) FindProducts(q ProductQuery) []Product {
	var res []Product
	for _, p := range c.Products {
		if q.Barcode != "" && p.Barcode != q.Barcode {
			continue
		}
		if q.Code != "" && p.Barcode != q.Code && p.Code != q.Code {
			continue
		}
		if q.SellerCode != "" {
			if p.SellerCodes == nil || p.SellerCodes[q.SellerID] != q.SellerCode {
				continue
			}
		}
		res = append(res, p)
	}
	return res
}

// FindTaxes returns taxes matching all set filters
func (c *MemoryCatalog) FindTaxes(q TaxQuery) []Tax {
	var res []Tax
	for _, t := range c.Taxes {
		if q.AmountType != "" && t.AmountType != q.AmountType {
			continue
		}
		if q.TypeUse != "" && t.TypeUse != q.TypeUse {
			continue
		}
		if q.PriceInclude != nil && t.PriceInclude != *q.PriceInclude {
			continue
		}
		if q.UNECETypeCode != "" && t.UNECETypeCode != q.UNECETypeCode {
			continue
		}
		if q.UNECECategCode != "" && t.UNECECategCode != q.UNECECategCode {
			continue
		}
		res = append(res, t)
	}
	return res
}

// FindCurrencies returns currencies matching all set filters
func (c *MemoryCatalog) FindCurrencies(q CurrencyQuery) []Currency {
	var res []Currency
	for _, cur := range c.Currencies {
		if q.ISO != "" && !strings.EqualFold(cur.ISO, q.ISO) {
			continue
		}
		if q.Symbol != "" && cur.Symbol != q.Symbol {
			continue
		}
		if q.CountryCode != "" {
			found := false
			for _, code := range cur.CountryCodes {
				if strings.EqualFold(code, q.CountryCode) {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		res = append(res, cur)
	}
	return res
}

// FindUOMs returns units matching all set filters
func (c *MemoryCatalog) FindUOMs(q UOMQuery) []UOM {
	var res []UOM
	for _, u := range c.UOMs {
		if q.UNECECode != "" && u.UNECECode != q.UNECECode {
			continue
		}
		if q.NamePrefix != "" &&
			!strings.HasPrefix(strings.ToLower(u.Name), strings.ToLower(q.NamePrefix)) {
			continue
		}
		res = append(res, u)
	}
	return res
}

// Accounts returns every account
func (c *MemoryCatalog) Accounts() []Account {
	return c.AccountSet
}

// PartnerByID looks up one partner
func (c *MemoryCatalog) PartnerByID(id string) (Partner, bool) {
	for _, p := range c.Partners {
		if p.ID == id {
			return p, true
		}
	}
	return Partner{}, false
}

// ProductByID looks up one product
func (c *MemoryCatalog) ProductByID(id string) (Product, bool) {
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// UOMByID looks up one unit of measure
func (c *MemoryCatalog) UOMByID(id string) (UOM, bool) {
	for _, u := range c.UOMs {
		if u.ID == id {
			return u, true
		}
	}
	return UOM{}, false
}

// CompanyCurrency returns the importing company's currency
func (c *MemoryCatalog) CompanyCurrency() Currency {
	return c.Company
}

// FallbackUOM returns the generic unit used when nothing matches
func (c *MemoryCatalog) FallbackUOM() UOM {
	return c.DefaultUOM
}

// HasCountry reports whether the country code exists in the catalog
func (c *MemoryCatalog) HasCountry(code string) bool {
	for _, cc := range c.Countries {
		if strings.EqualFold(cc, code) {
			return true
		}
	}
	return false
}
