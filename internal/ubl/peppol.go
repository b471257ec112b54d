package ubl

import (
	"github.com/beevik/etree"

	"github.com/rezonia/docexchange/internal/model"
)

// PEPPOL BIS Billing 3.0 identifiers
const (
	peppolCustomizationID = "urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:billing:3.0"
	peppolProfileID       = "urn:fdc:peppol.eu:2017:poacc:billing:01:1.0"
)

// postProcess reshapes a generated invoice tree for the PEPPOL BIS 3.0
// profile. The generic EN 16931 rendering is valid UBL but the BIS schematron
// additionally requires customization identifiers and endpoint IDs, and
// rejects a handful of otherwise legal elements
func postProcess(tree *etree.Document, peppol bool, doc *model.Document) *etree.Document {
	if !peppol {
		return tree
	}
	root := tree.Root()
	if root == nil {
		return tree
	}

	insertAfterVersion(root, "cbc:ProfileID", peppolProfileID)
	insertAfterVersion(root, "cbc:CustomizationID", peppolCustomizationID)

	addEndpoint(descend(root, "AccountingSupplierParty", "Party"), doc.Partner)
	addEndpoint(descend(root, "AccountingCustomerParty", "Party"), doc.Company)

	scrub(root)
	return tree
}

// insertAfterVersion places an element right after cbc:UBLVersionID, or
// first when the version element is absent
func insertAfterVersion(root *etree.Element, tag, value string) {
	el := etree.NewElement(tag)
	el.SetText(value)
	idx := 0
	for i, c := range root.ChildElements() {
		if c.Tag == "UBLVersionID" {
			idx = i + 1
			break
		}
	}
	root.InsertChildAt(childIndex(root, idx), el)
}

// childIndex converts an element-child ordinal into a token index, which
// is what InsertChildAt expects
func childIndex(el *etree.Element, ordinal int) int {
	n := 0
	for i, tok := range el.Child {
		if _, ok := tok.(*etree.Element); ok {
			if n == ordinal {
				return i
			}
			n++
		}
	}
	return len(el.Child)
}

// addEndpoint inserts cbc:EndpointID before cac:PartyName. A registered
// e-invoicing endpoint from the catalog wins; otherwise the party's first
// scheme-qualified identifier is used, typically a GLN under scheme 0088
func addEndpoint(party *etree.Element, ref model.PartyRef) {
	if party == nil {
		return
	}
	var value, scheme string
	switch {
	case ref.PeppolEndpoint != "":
		value, scheme = ref.PeppolEndpoint, ref.PeppolScheme
	case len(ref.IDNumbers) > 0:
		value, scheme = ref.IDNumbers[0].Value, ref.IDNumbers[0].SchemeID
	case ref.GLN != "":
		value, scheme = ref.GLN, "0088"
	default:
		return
	}
	ep := etree.NewElement("cbc:EndpointID")
	if scheme != "" {
		ep.CreateAttr("schemeID", scheme)
	}
	ep.SetText(value)

	ordinal := 0
	for i, c := range party.ChildElements() {
		if c.Tag == "PartyName" {
			ordinal = i
			break
		}
	}
	party.InsertChildAt(childIndex(party, ordinal), ep)
}

// scrub removes elements the BIS schematron rejects: the payment due date
// duplicated inside PaymentMeans, website URIs, country names and
// per-line tax totals
func scrub(root *etree.Element) {
	for _, pm := range children(root, "PaymentMeans") {
		if due := child(pm, "PaymentDueDate"); due != nil {
			pm.RemoveChild(due)
		}
	}
	removeAll(root, "WebsiteURI")
	for _, country := range findAll(root, "Country") {
		if name := child(country, "Name"); name != nil {
			country.RemoveChild(name)
		}
	}
	for _, line := range children(root, "InvoiceLine") {
		for _, tt := range children(line, "TaxTotal") {
			line.RemoveChild(tt)
		}
	}
}

// removeAll deletes every descendant element with the given local name
func removeAll(el *etree.Element, local string) {
	for _, c := range el.ChildElements() {
		if c.Tag == local {
			el.RemoveChild(c)
			continue
		}
		removeAll(c, local)
	}
}

// findAll collects every descendant element with the given local name
func findAll(el *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == local {
			out = append(out, c)
		}
		out = append(out, findAll(c, local)...)
	}
	return out
}
