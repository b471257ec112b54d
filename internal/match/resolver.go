package match

import (
	"sort"
	"strings"

	"github.com/rezonia/docexchange/internal/logging"
	"github.com/rezonia/docexchange/internal/model"
)

// PartnerType restricts a partner lookup to one side of the trade
type PartnerType string

const (
	PartnerAny      PartnerType = ""
	PartnerSupplier PartnerType = "supplier"
	PartnerCustomer PartnerType = "customer"
)

// Resolver runs the matching cascade against a Catalog. When Strict is
// set, a descriptor that resolves to nothing returns a NotFoundError;
// otherwise the miss is recorded as a warning and the ref left unresolved
type Resolver struct {
	Catalog Catalog
	Strict  bool
}

// NewResolver builds a resolver over the given catalog
func NewResolver(c Catalog) *Resolver {
	return &Resolver{Catalog: c}
}

func (r *Resolver) miss(w *model.Messages, entity string, details map[string]string) error {
	err := &model.NotFoundError{Entity: entity, Details: details}
	if r.Strict {
		return err
	}
	if w != nil {
		w.Add("%s", err.Error())
	}
	return nil
}

// Partner resolves a party descriptor. Strategies run in a fixed priority
// order and the first one yielding exactly one partner wins; a strategy
// yielding several candidates is skipped in favor of the next, stricter
// evidence being preferred over more of it
func (r *Resolver) Partner(ref *model.PartyRef, w *model.Messages, ptype PartnerType) error {
	if ref == nil || ref.Empty() {
		return nil
	}
	if ref.ResolvedID != "" {
		if _, ok := r.Catalog.PartnerByID(ref.ResolvedID); ok {
			return nil
		}
		ref.ResolvedID = ""
	}

	base := PartnerQuery{
		OnlySupplier: ptype == PartnerSupplier,
		OnlyCustomer: ptype == PartnerCustomer,
	}

	// A stated country narrows every strategy; a country code the catalog
	// doesn't know warns and is dropped from the filters
	if ref.CountryCode != "" {
		if r.Catalog.HasCountry(ref.CountryCode) {
			base.CountryCode = ref.CountryCode
			base.StateCode = ref.StateCode
		} else if w != nil {
			w.Add("The country code %q doesn't exist in the catalog and was "+
				"ignored for partner matching", ref.CountryCode)
		}
	}

	// GLN and proprietary EDI codes identify a precise mailbox, they
	// outrank everything else
	for _, idn := range ref.IDNumbers {
		if idn.SchemeID == "0088" || idn.SchemeID == "GLN" {
			q := base
			q.GLN = idn.Value
			if p, ok := r.single(q); ok {
				r.adopt(ref, p)
				return nil
			}
		}
	}
	if ref.GLN != "" {
		q := base
		q.GLN = ref.GLN
		if p, ok := r.single(q); ok {
			r.adopt(ref, p)
			return nil
		}
	}
	if ref.EDICode != "" {
		q := base
		q.EDICode = ref.EDICode
		if p, ok := r.single(q); ok {
			r.adopt(ref, p)
			return nil
		}
	}

	if ref.VAT != "" {
		vat := model.CleanVAT(ref.VAT)
		// VAT numbers belong to legal entities, so the search is
		// restricted to companies
		q := base
		q.VAT = vat
		q.OnlyCompany = true
		if p, ok := r.single(q); ok {
			r.adopt(ref, p)
			return nil
		}
		if w != nil {
			w.Add("No partner found with VAT number %s", vat)
		}
	}

	if ref.Email != "" && strings.Contains(ref.Email, "@") {
		q := base
		q.Email = ref.Email
		if p, ok := r.single(q); ok {
			r.adopt(ref, p)
			return nil
		}
		// Fall back to the mail domain matched against partner websites
		// and emails. This is fuzzy, so it always warns
		domain := domainOf(ref.Email)
		if !genericMailDomain(domain) {
			q = base
			q.EmailDomain = domain
			if cands := r.Catalog.FindPartners(q); len(cands) > 0 {
				p := cands[0]
				if w != nil {
					w.Add("Partner %q was identified by the domain name %q, "+
						"so please check the matching carefully", p.Name, domain)
				}
				r.adopt(ref, p)
				return nil
			}
		}
	}

	if ref.Ref != "" {
		q := base
		q.Ref = ref.Ref
		if p, ok := r.single(q); ok {
			r.adopt(ref, p)
			return nil
		}
	}

	if ref.Name != "" {
		q := base
		q.Name = strings.TrimSpace(ref.Name)
		if p, ok := r.single(q); ok {
			r.adopt(ref, p)
			return nil
		}
	}

	return r.miss(w, "partner", map[string]string{
		"name":  ref.Name,
		"vat":   ref.VAT,
		"email": ref.Email,
		"ref":   ref.Ref,
		"gln":   ref.GLN,
	})
}

// adopt attaches the matched partner's identity to the ref, including its
// registered e-invoicing endpoint
func (r *Resolver) adopt(ref *model.PartyRef, p Partner) {
	ref.ResolvedID = p.ID
	if ref.PeppolEndpoint == "" && p.PeppolEndpoint != "" {
		ref.PeppolEndpoint = p.PeppolEndpoint
		ref.PeppolScheme = p.PeppolScheme
	}
}

// single runs a partner query and returns a result only on an unambiguous
// hit
func (r *Resolver) single(q PartnerQuery) (Partner, bool) {
	cands := r.Catalog.FindPartners(q)
	if len(cands) == 1 {
		return cands[0], true
	}
	if len(cands) > 1 {
		logging.WithField("candidates", len(cands)).
			Debug("ambiguous partner query, trying next strategy")
	}
	return Partner{}, false
}

var genericDomains = map[string]bool{
	"gmail.com":   true,
	"outlook.com": true,
	"hotmail.com": true,
	"yahoo.com":   true,
	"yahoo.fr":    true,
	"aol.com":     true,
	"gmx.de":      true,
	"gmx.net":     true,
	"free.fr":     true,
	"orange.fr":   true,
	"wanadoo.fr":  true,
}

func genericMailDomain(domain string) bool {
	return genericDomains[domain]
}

// ShippingPartner resolves a delivery address. The anchor is the already
// resolved commercial partner: the search starts among its delivery
// children and widens step by step, warning whenever a geographic
// criterion has to be dropped
func (r *Resolver) ShippingPartner(ref *model.PartyRef, anchor *model.PartyRef, w *model.Messages) error {
	if ref == nil || (ref.Empty() && ref.Zip == "" && ref.CountryCode == "") {
		return nil
	}
	if !ref.Empty() {
		if err := r.Partner(ref, nil, PartnerAny); err == nil && ref.ResolvedID != "" {
			return nil
		}
	}

	var parentID string
	if anchor != nil {
		parentID = anchor.ResolvedID
	}

	steps := []PartnerQuery{
		{ParentID: parentID, AddressType: "delivery", Zip: ref.Zip, StateCode: ref.StateCode, CountryCode: ref.CountryCode},
		{ParentID: parentID, Zip: ref.Zip, StateCode: ref.StateCode, CountryCode: ref.CountryCode},
		{Zip: ref.Zip, StateCode: ref.StateCode, CountryCode: ref.CountryCode},
		{Zip: ref.Zip, CountryCode: ref.CountryCode},
		{CountryCode: ref.CountryCode},
	}
	for i, q := range steps {
		if q.Zip == "" && q.CountryCode == "" && q.ParentID == "" {
			continue
		}
		cands := r.Catalog.FindPartners(q)
		if len(cands) == 0 {
			continue
		}
		p := cands[0]
		if i >= 2 && w != nil {
			w.Add("The shipping address was matched outside the commercial "+
				"partner's contacts (partner %q, zip %s, country %s), "+
				"please check it", p.Name, ref.Zip, ref.CountryCode)
		}
		ref.ResolvedID = p.ID
		return nil
	}

	return r.miss(w, "shipping partner", map[string]string{
		"zip":     ref.Zip,
		"country": ref.CountryCode,
	})
}

// Currency resolves a currency descriptor. An unresolvable or absent
// currency falls back to the company currency with a warning so amounts
// are never imported unitless
func (r *Resolver) Currency(ref *model.CurrencyRef, w *model.Messages) error {
	if ref.ResolvedID != "" {
		return nil
	}
	company := r.Catalog.CompanyCurrency()

	if ref.ISO != "" {
		if cands := r.Catalog.FindCurrencies(CurrencyQuery{ISO: ref.ISO}); len(cands) == 1 {
			ref.ResolvedID = cands[0].ID
			return nil
		}
		if w != nil {
			w.Add("The currency code %q doesn't exist in the catalog", ref.ISO)
		}
	}
	if ref.Symbol != "" {
		cands := r.Catalog.FindCurrencies(CurrencyQuery{Symbol: ref.Symbol})
		switch len(cands) {
		case 1:
			ref.ResolvedID = cands[0].ID
			return nil
		case 0:
		default:
			if w != nil {
				w.Add("The currency symbol %q matches several currencies", ref.Symbol)
			}
		}
	}
	if ref.ISOOrSymbol != "" {
		// A currency whose ISO code doubles as its symbol must not be
		// counted twice
		seen := map[string]Currency{}
		for _, c := range r.Catalog.FindCurrencies(CurrencyQuery{ISO: ref.ISOOrSymbol}) {
			seen[c.ID] = c
		}
		for _, c := range r.Catalog.FindCurrencies(CurrencyQuery{Symbol: ref.ISOOrSymbol}) {
			seen[c.ID] = c
		}
		if len(seen) == 1 {
			for _, c := range seen {
				ref.ResolvedID = c.ID
			}
			return nil
		}
	}
	if ref.CountryCode != "" {
		if cands := r.Catalog.FindCurrencies(CurrencyQuery{CountryCode: ref.CountryCode}); len(cands) == 1 {
			ref.ResolvedID = cands[0].ID
			return nil
		}
	}

	if r.Strict && !ref.Empty() {
		return &model.NotFoundError{Entity: "currency", Details: map[string]string{
			"iso":    ref.ISO,
			"symbol": ref.Symbol,
		}}
	}
	if !ref.Empty() && w != nil {
		w.Add("The document currency could not be identified, "+
			"falling back to the company currency %s", company.ISO)
	}
	ref.ResolvedID = company.ID
	return nil
}

// CurrencyPrecision returns the decimal places of a resolved currency,
// defaulting to the company currency's
func (r *Resolver) CurrencyPrecision(ref model.CurrencyRef) int32 {
	if ref.ResolvedID != "" {
		for _, c := range r.Catalog.FindCurrencies(CurrencyQuery{}) {
			if c.ID == ref.ResolvedID {
				return c.DecimalPlaces
			}
		}
	}
	return r.Catalog.CompanyCurrency().DecimalPlaces
}

// Product resolves a product descriptor. Barcode outranks internal code,
// internal code outranks the code the seller assigned to the product
func (r *Resolver) Product(ref *model.ProductRef, w *model.Messages, seller *model.PartyRef) error {
	if ref == nil || ref.Empty() {
		return nil
	}
	if ref.ResolvedID != "" {
		if _, ok := r.Catalog.ProductByID(ref.ResolvedID); ok {
			return nil
		}
		ref.ResolvedID = ""
	}

	if ref.Barcode != "" {
		if cands := r.Catalog.FindProducts(ProductQuery{Barcode: ref.Barcode}); len(cands) == 1 {
			ref.ResolvedID = cands[0].ID
			return nil
		}
	}
	if ref.Code != "" {
		if cands := r.Catalog.FindProducts(ProductQuery{Code: ref.Code}); len(cands) == 1 {
			ref.ResolvedID = cands[0].ID
			return nil
		}
		if seller != nil && seller.ResolvedID != "" {
			q := ProductQuery{SellerID: seller.ResolvedID, SellerCode: ref.Code}
			if cands := r.Catalog.FindProducts(q); len(cands) == 1 {
				ref.ResolvedID = cands[0].ID
				return nil
			}
		}
	}

	return r.miss(w, "product", map[string]string{
		"barcode": ref.Barcode,
		"code":    ref.Code,
		"name":    ref.Name,
	})
}

// UOM resolves a unit-of-measure descriptor. NIU and ZZ both mean the
// generic unit. When nothing matches, the product's own unit is used if
// known, otherwise the catalog fallback unit, each with a warning
func (r *Resolver) UOM(ref *model.UOMRef, w *model.Messages, product *model.ProductRef) error {
	if ref == nil {
		return nil
	}
	if ref.ResolvedID != "" {
		if _, ok := r.Catalog.UOMByID(ref.ResolvedID); ok {
			return nil
		}
		ref.ResolvedID = ""
	}

	code := ref.UNECECode
	if code == "NIU" || code == "ZZ" {
		code = "C62"
	}
	if code != "" {
		cands := r.Catalog.FindUOMs(UOMQuery{UNECECode: code})
		switch len(cands) {
		case 1:
			ref.ResolvedID = cands[0].ID
			return nil
		case 0:
			if w != nil {
				w.Add("The UNECE unit of measure code %q doesn't exist in the catalog", code)
			}
		default:
			if w != nil {
				w.Add("The UNECE unit of measure code %q matches several units", code)
			}
		}
	}
	if ref.Name != "" {
		if cands := r.Catalog.FindUOMs(UOMQuery{NamePrefix: ref.Name}); len(cands) == 1 {
			ref.ResolvedID = cands[0].ID
			return nil
		}
	}

	if product != nil && product.ResolvedID != "" {
		if p, ok := r.Catalog.ProductByID(product.ResolvedID); ok && p.UOMID != "" {
			if w != nil && (code != "" || ref.Name != "") {
				w.Add("Using the unit of measure of product %q instead of the "+
					"unit stated on the line", p.Name)
			}
			ref.ResolvedID = p.UOMID
			return nil
		}
	}

	fb := r.Catalog.FallbackUOM()
	if w != nil && (code != "" || ref.Name != "") {
		w.Add("Falling back to the generic unit %q for an unidentified "+
			"unit of measure", fb.Name)
	}
	ref.ResolvedID = fb.ID
	return nil
}

// taxAmountDigits is the comparison precision for tax rates
const taxAmountDigits = 4

// Tax resolves a tax descriptor: candidates are filtered on every stated
// attribute, then the rate is compared at 4 decimal digits
func (r *Resolver) Tax(ref *model.TaxRef, w *model.Messages, typeUse string, priceInclude *bool) error {
	if ref == nil {
		return nil
	}
	if ref.ResolvedID != "" {
		return nil
	}

	q := TaxQuery{
		AmountType:     ref.AmountType,
		TypeUse:        typeUse,
		PriceInclude:   priceInclude,
		UNECETypeCode:  ref.UNECETypeCode,
		UNECECategCode: ref.UNECECategCode,
	}
	for _, t := range r.Catalog.FindTaxes(q) {
		if t.Amount.Round(taxAmountDigits).Equal(ref.Amount.Round(taxAmountDigits)) {
			ref.ResolvedID = t.ID
			return nil
		}
	}

	return r.miss(w, "tax", map[string]string{
		"amount_type": ref.AmountType,
		"amount":      ref.Amount.String(),
		"type":        typeUse,
	})
}

// Taxes resolves a line's tax list, folding duplicate descriptors that
// resolve to the same catalog tax
func (r *Resolver) Taxes(taxes []model.TaxRef, w *model.Messages, typeUse string, priceInclude *bool) ([]model.TaxRef, error) {
	var out []model.TaxRef
	seen := map[string]bool{}
	for i := range taxes {
		if err := r.Tax(&taxes[i], w, typeUse, priceInclude); err != nil {
			return nil, err
		}
		if taxes[i].ResolvedID != "" && seen[taxes[i].ResolvedID] {
			continue
		}
		if taxes[i].ResolvedID != "" {
			seen[taxes[i].ResolvedID] = true
		}
		out = append(out, taxes[i])
	}
	return out, nil
}

// Account resolves a general-ledger account code. An exact code match
// wins; otherwise trailing zeros are trimmed from the searched code and a
// bidirectional prefix comparison is attempted, which always warns
func (r *Resolver) Account(ref *model.AccountRef, w *model.Messages) error {
	if ref == nil || ref.Code == "" || ref.ResolvedID != "" {
		return nil
	}

	accounts := r.Catalog.Accounts()
	for _, a := range accounts {
		if a.Code == ref.Code {
			ref.ResolvedID = a.ID
			return nil
		}
	}

	trimmed := strings.TrimRight(ref.Code, "0")
	if trimmed != "" {
		var hits []Account
		for _, a := range accounts {
			if strings.HasPrefix(a.Code, trimmed) || strings.HasPrefix(trimmed, a.Code) {
				hits = append(hits, a)
			}
		}
		// Prefer the longest shared prefix to keep the choice deterministic
		sort.SliceStable(hits, func(i, j int) bool {
			return len(hits[i].Code) > len(hits[j].Code)
		})
		if len(hits) > 0 {
			a := hits[0]
			if w != nil {
				w.Add("Approximate match: account code %s matched catalog "+
					"account %s (%s)", ref.Code, a.Code, a.Name)
			}
			ref.ResolvedID = a.ID
			return nil
		}
	}

	return r.miss(w, "account", map[string]string{"code": ref.Code})
}

// ResolveAll annotates a whole document: currency, parties, then every
// line's product, unit and taxes. Warnings accumulate on the document;
// only strict mode can return an error
func (r *Resolver) ResolveAll(doc *model.Document) error {
	w := &doc.Messages

	if err := r.Currency(&doc.Currency, w); err != nil {
		return err
	}

	ptype := PartnerSupplier
	typeUse := "purchase"
	switch doc.Kind {
	case model.KindOrder, model.KindRFQ:
		// Inbound orders come from customers
		ptype = PartnerCustomer
		typeUse = "sale"
	}
	if err := r.Partner(&doc.Partner, w, ptype); err != nil {
		return err
	}
	if err := r.ShippingPartner(&doc.ShipTo, &doc.Partner, w); err != nil {
		return err
	}
	if !doc.InvoiceTo.Empty() {
		if err := r.Partner(&doc.InvoiceTo, w, PartnerAny); err != nil {
			return err
		}
	}

	if doc.IBAN != "" && !model.IsValidIBAN(doc.IBAN) {
		w.Add("The IBAN %s fails checksum validation and was discarded", doc.IBAN)
		doc.IBAN = ""
	}

	for i := range doc.Lines {
		line := &doc.Lines[i]
		if line.SectionHeader {
			continue
		}
		if err := r.Product(&line.Product, w, &doc.Partner); err != nil {
			return err
		}
		if err := r.UOM(&line.UOM, w, &line.Product); err != nil {
			return err
		}
		taxes, err := r.Taxes(line.Taxes, w, typeUse, nil)
		if err != nil {
			return err
		}
		line.Taxes = taxes
	}

	model.ValidateTotals(doc, r.CurrencyPrecision(doc.Currency))
	return nil
}
