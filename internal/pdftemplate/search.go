package pdftemplate

import (
	"github.com/rezonia/docexchange/internal/match"
	"github.com/rezonia/docexchange/internal/model"
)

// Catalog attributes a search_field rule may resolve against. Validated
// at template compile time so a typo fails the template, not the parse
var searchFields = map[string]bool{
	"partner.vat":     true,
	"partner.gln":     true,
	"partner.ref":     true,
	"partner.name":    true,
	"product.barcode": true,
	"product.code":    true,
}

// resolveSearchFields swaps extracted literals for catalog identifiers on
// rules that declare a search_field. Only a single unambiguous hit
// resolves; a miss keeps the literal and records a message
func (e *Engine) resolveSearchFields(t *Template, res *Result) {
	if e.Catalog == nil {
		return
	}
	for name, rule := range t.Fields {
		resolveSearchField(e.Catalog, name, rule, res.Fields, &res.Messages)
	}
	if t.Lines == nil {
		return
	}
	for _, rec := range res.Lines {
		for name, rule := range t.Lines.Fields {
			resolveSearchField(e.Catalog, name, rule, rec, &res.Messages)
		}
	}
}

func resolveSearchField(c match.Catalog, name string, rule *FieldRule, values map[string]interface{}, msgs *model.Messages) {
	if rule.SearchField == "" {
		return
	}
	raw, ok := values[name].(string)
	if !ok || raw == "" {
		return
	}
	id, found := lookupCatalogField(c, rule.SearchField, raw)
	if !found {
		msgs.Add("field %s: no single catalog match for %s %q, keeping the literal", name, rule.SearchField, raw)
		return
	}
	values[name] = id
}

func lookupCatalogField(c match.Catalog, field, raw string) (string, bool) {
	switch field {
	case "partner.vat":
		return singlePartner(c.FindPartners(match.PartnerQuery{VAT: model.CleanVAT(raw)}))
	case "partner.gln":
		return singlePartner(c.FindPartners(match.PartnerQuery{GLN: raw}))
	case "partner.ref":
		return singlePartner(c.FindPartners(match.PartnerQuery{Ref: raw}))
	case "partner.name":
		return singlePartner(c.FindPartners(match.PartnerQuery{Name: raw}))
	case "product.barcode":
		return singleProduct(c.FindProducts(match.ProductQuery{Barcode: raw}))
	case "product.code":
		return singleProduct(c.FindProducts(match.ProductQuery{Code: raw}))
	}
	return "", false
}

func singlePartner(ps []match.Partner) (string, bool) {
	if len(ps) == 1 {
		return ps[0].ID, true
	}
	return "", false
}

func singleProduct(ps []match.Product) (string, bool) {
	if len(ps) == 1 {
		return ps[0].ID, true
	}
	return "", false
}
