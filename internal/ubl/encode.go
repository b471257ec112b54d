package ubl

import (
	"fmt"
	"sort"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rezonia/docexchange/internal/model"
)

// Encoder renders canonical documents as UBL 2.1 XML. Precision is the
// decimal-place count of the document currency; every emitted amount is
// formatted with exactly that many places
type Encoder struct {
	Precision int32
	// Peppol enables the BIS Billing 3.0 post-processing pass on invoices
	Peppol bool
	// Indent pretty-prints the output. Wire payloads stay compact
	Indent bool
}

// NewEncoder returns an encoder with 2-digit amounts
func NewEncoder() *Encoder {
	return &Encoder{Precision: 2}
}

// Encode renders a document according to its kind
func (e *Encoder) Encode(doc *model.Document) ([]byte, error) {
	switch doc.Kind {
	case model.KindInvoice, model.KindRefund:
		return e.EncodeInvoice(doc)
	case model.KindOrder, model.KindRFQ:
		return e.EncodeOrder(doc)
	case model.KindOrderResponse:
		return e.EncodeOrderResponse(doc)
	}
	return nil, &model.UnsupportedVariantError{Format: "ubl", Root: string(doc.Kind)}
}

func (e *Encoder) newRoot(kind model.DocKind) (*etree.Document, *etree.Element) {
	meta := rootNamespaces[kind]
	tree := etree.NewDocument()
	tree.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := tree.CreateElement(meta.Root)
	root.CreateAttr("xmlns", meta.NS)
	root.CreateAttr("xmlns:cac", nsCAC)
	root.CreateAttr("xmlns:cbc", nsCBC)
	return tree, root
}

func (e *Encoder) serialize(tree *etree.Document) ([]byte, error) {
	if e.Indent {
		tree.Indent(2)
	}
	return tree.WriteToBytes()
}

func (e *Encoder) money(parent *etree.Element, tag, currency string, v decimal.Decimal) {
	el := parent.CreateElement(tag)
	el.CreateAttr("currencyID", currency)
	el.SetText(v.StringFixed(e.Precision))
}

// EncodeInvoice renders an invoice or refund. Both use the Invoice root;
// the type code 380/381 carries the distinction
func (e *Encoder) EncodeInvoice(doc *model.Document) ([]byte, error) {
	if err := doc.CheckStructure(); err != nil {
		return nil, err
	}
	currency := doc.Currency.ISO
	if currency == "" {
		return nil, model.NewParseError("ubl", "DocumentCurrencyCode", "document has no currency", nil)
	}

	tree, root := e.newRoot(model.KindInvoice)
	root.CreateElement("cbc:UBLVersionID").SetText("2.1")
	root.CreateElement("cbc:ID").SetText(doc.Reference)
	if !doc.IssueDate.IsZero() {
		root.CreateElement("cbc:IssueDate").SetText(doc.IssueDate.Format("2006-01-02"))
	}
	if !doc.DueDate.IsZero() {
		root.CreateElement("cbc:DueDate").SetText(doc.DueDate.Format("2006-01-02"))
	}
	typeCode := "380"
	if doc.Kind == model.KindRefund {
		typeCode = "381"
	}
	root.CreateElement("cbc:InvoiceTypeCode").SetText(typeCode)
	for _, note := range doc.Notes {
		root.CreateElement("cbc:Note").SetText(note)
	}
	root.CreateElement("cbc:DocumentCurrencyCode").SetText(currency)
	if doc.Origin != "" {
		root.CreateElement("cac:OrderReference").
			CreateElement("cbc:ID").SetText(doc.Origin)
	}

	addParty(root.CreateElement("cac:AccountingSupplierParty").CreateElement("cac:Party"), doc.Partner)
	addParty(root.CreateElement("cac:AccountingCustomerParty").CreateElement("cac:Party"), doc.Company)
	e.addDelivery(root, doc.ShipTo)
	e.addPaymentMeans(root, doc)

	lineTotal, taxTotal, buckets := e.computeTotals(doc)
	e.addTaxTotal(root, currency, taxTotal, buckets)

	lmt := root.CreateElement("cac:LegalMonetaryTotal")
	e.money(lmt, "cbc:LineExtensionAmount", currency, lineTotal)
	e.money(lmt, "cbc:TaxExclusiveAmount", currency, lineTotal)
	e.money(lmt, "cbc:TaxInclusiveAmount", currency, lineTotal.Add(taxTotal))
	e.money(lmt, "cbc:PayableAmount", currency, lineTotal.Add(taxTotal))

	for _, line := range doc.Lines {
		if line.SectionHeader {
			continue
		}
		e.addInvoiceLine(root, currency, line)
	}
	return e.serialize(postProcess(tree, e.Peppol, doc))
}

// taxBucket accumulates the base per (category, rate) pair for the
// TaxSubtotal breakdown
type taxBucket struct {
	categ   string
	percent decimal.Decimal
	base    decimal.Decimal
	tax     decimal.Decimal
}

func (e *Encoder) computeTotals(doc *model.Document) (decimal.Decimal, decimal.Decimal, []taxBucket) {
	lineTotal := decimal.Zero
	taxTotal := decimal.Zero
	byKey := map[string]*taxBucket{}
	var order []string
	for _, line := range doc.Lines {
		if line.SectionHeader {
			continue
		}
		sub := model.LineSubtotal(line, e.Precision)
		lineTotal = lineTotal.Add(sub)
		for _, t := range line.Taxes {
			amt := sub.Mul(t.Amount).Div(decimal.NewFromInt(100)).Round(e.Precision)
			if t.AmountType == "fixed" {
				amt = t.Amount.Mul(line.Quantity).Round(e.Precision)
			}
			taxTotal = taxTotal.Add(amt)
			categ := t.UNECECategCode
			if categ == "" {
				categ = "S"
			}
			key := categ + "|" + t.Amount.String()
			b, ok := byKey[key]
			if !ok {
				b = &taxBucket{categ: categ, percent: t.Amount}
				byKey[key] = b
				order = append(order, key)
			}
			b.base = b.base.Add(sub)
			b.tax = b.tax.Add(amt)
		}
	}
	sort.Strings(order)
	buckets := make([]taxBucket, 0, len(order))
	for _, key := range order {
		buckets = append(buckets, *byKey[key])
	}
	return lineTotal, taxTotal, buckets
}

func (e *Encoder) addTaxTotal(parent *etree.Element, currency string, total decimal.Decimal, buckets []taxBucket) {
	tt := parent.CreateElement("cac:TaxTotal")
	e.money(tt, "cbc:TaxAmount", currency, total)
	for _, b := range buckets {
		ts := tt.CreateElement("cac:TaxSubtotal")
		e.money(ts, "cbc:TaxableAmount", currency, b.base)
		e.money(ts, "cbc:TaxAmount", currency, b.tax)
		cat := ts.CreateElement("cac:TaxCategory")
		cat.CreateElement("cbc:ID").SetText(b.categ)
		cat.CreateElement("cbc:Percent").SetText(b.percent.StringFixed(1))
		cat.CreateElement("cac:TaxScheme").
			CreateElement("cbc:ID").SetText("VAT")
	}
}

func (e *Encoder) addDelivery(parent *etree.Element, shipTo model.PartyRef) {
	if shipTo.Empty() && shipTo.Zip == "" && shipTo.CountryCode == "" {
		return
	}
	delivery := parent.CreateElement("cac:Delivery")
	addr := delivery.CreateElement("cac:DeliveryLocation").
		CreateElement("cac:Address")
	addAddress(addr, shipTo)
}

func (e *Encoder) addPaymentMeans(parent *etree.Element, doc *model.Document) {
	if doc.IBAN == "" {
		return
	}
	pm := parent.CreateElement("cac:PaymentMeans")
	// 31 is the UNCL 4461 code for debit transfer
	pm.CreateElement("cbc:PaymentMeansCode").SetText("31")
	if !doc.DueDate.IsZero() {
		pm.CreateElement("cbc:PaymentDueDate").SetText(doc.DueDate.Format("2006-01-02"))
	}
	acct := pm.CreateElement("cac:PayeeFinancialAccount")
	id := acct.CreateElement("cbc:ID")
	id.CreateAttr("schemeID", "IBAN")
	id.SetText(doc.IBAN)
	if doc.BIC != "" {
		fib := acct.CreateElement("cac:FinancialInstitutionBranch")
		bid := fib.CreateElement("cbc:ID")
		bid.CreateAttr("schemeID", "BIC")
		bid.SetText(doc.BIC)
	}
}

func (e *Encoder) addInvoiceLine(parent *etree.Element, currency string, line model.DocumentLine) {
	el := parent.CreateElement("cac:InvoiceLine")
	el.CreateElement("cbc:ID").SetText(fmt.Sprintf("%d", line.Sequence))

	qty := el.CreateElement("cbc:InvoicedQuantity")
	unitCode := line.UOM.UNECECode
	if unitCode == "" {
		unitCode = "C62"
	}
	qty.CreateAttr("unitCode", unitCode)
	qty.SetText(line.Quantity.String())

	e.money(el, "cbc:LineExtensionAmount", currency, model.LineSubtotal(line, e.Precision))

	if !line.DateStart.IsZero() || !line.DateEnd.IsZero() {
		period := el.CreateElement("cac:InvoicePeriod")
		if !line.DateStart.IsZero() {
			period.CreateElement("cbc:StartDate").SetText(line.DateStart.Format("2006-01-02"))
		}
		if !line.DateEnd.IsZero() {
			period.CreateElement("cbc:EndDate").SetText(line.DateEnd.Format("2006-01-02"))
		}
	}

	item := el.CreateElement("cac:Item")
	if line.Description != "" {
		item.CreateElement("cbc:Description").SetText(line.Description)
	}
	name := line.Product.Name
	if name == "" {
		name = line.Description
	}
	item.CreateElement("cbc:Name").SetText(name)
	if line.Product.Code != "" {
		item.CreateElement("cac:SellersItemIdentification").
			CreateElement("cbc:ID").SetText(line.Product.Code)
	}
	if line.Product.Barcode != "" {
		sid := item.CreateElement("cac:StandardItemIdentification")
		id := sid.CreateElement("cbc:ID")
		id.CreateAttr("schemeID", "0160")
		id.SetText(line.Product.Barcode)
	}
	for _, t := range line.Taxes {
		cat := item.CreateElement("cac:ClassifiedTaxCategory")
		categ := t.UNECECategCode
		if categ == "" {
			categ = "S"
		}
		cat.CreateElement("cbc:ID").SetText(categ)
		cat.CreateElement("cbc:Percent").SetText(t.Amount.StringFixed(1))
		cat.CreateElement("cac:TaxScheme").
			CreateElement("cbc:ID").SetText("VAT")
	}

	price := el.CreateElement("cac:Price")
	e.money(price, "cbc:PriceAmount", currency, line.UnitPrice)
}

// EncodeOrder renders a purchase order or request for quotation
func (e *Encoder) EncodeOrder(doc *model.Document) ([]byte, error) {
	currency := doc.Currency.ISO
	if currency == "" {
		return nil, model.NewParseError("ubl", "DocumentCurrencyCode", "document has no currency", nil)
	}
	kind := doc.Kind
	if kind != model.KindRFQ {
		kind = model.KindOrder
		if err := doc.CheckStructure(); err != nil {
			return nil, err
		}
	}

	tree, root := e.newRoot(kind)
	root.CreateElement("cbc:UBLVersionID").SetText("2.1")
	root.CreateElement("cbc:ID").SetText(doc.Reference)
	if !doc.IssueDate.IsZero() {
		root.CreateElement("cbc:IssueDate").SetText(doc.IssueDate.Format("2006-01-02"))
	}
	for _, note := range doc.Notes {
		root.CreateElement("cbc:Note").SetText(note)
	}
	root.CreateElement("cbc:DocumentCurrencyCode").SetText(currency)

	// On an outbound order the company buys and the counter-party sells
	addParty(root.CreateElement("cac:BuyerCustomerParty").CreateElement("cac:Party"), doc.Company)
	addParty(root.CreateElement("cac:SellerSupplierParty").CreateElement("cac:Party"), doc.Partner)
	e.addDelivery(root, doc.ShipTo)

	lineTag := "cac:OrderLine"
	if kind == model.KindRFQ {
		lineTag = "cac:RequestForQuotationLine"
	}
	for _, line := range doc.Lines {
		if line.SectionHeader {
			continue
		}
		wrapper := root.CreateElement(lineTag)
		e.addOrderLineItem(wrapper, currency, line)
	}
	return e.serialize(tree)
}

func (e *Encoder) addOrderLineItem(wrapper *etree.Element, currency string, line model.DocumentLine) {
	el := wrapper.CreateElement("cac:LineItem")
	el.CreateElement("cbc:ID").SetText(fmt.Sprintf("%d", line.Sequence))

	qty := el.CreateElement("cbc:Quantity")
	unitCode := line.UOM.UNECECode
	if unitCode == "" {
		unitCode = "C62"
	}
	qty.CreateAttr("unitCode", unitCode)
	qty.SetText(line.Quantity.String())

	e.money(el, "cbc:LineExtensionAmount", currency, model.LineSubtotal(line, e.Precision))

	price := el.CreateElement("cac:Price")
	e.money(price, "cbc:PriceAmount", currency, line.UnitPrice)

	item := el.CreateElement("cac:Item")
	if line.Description != "" {
		item.CreateElement("cbc:Description").SetText(line.Description)
	}
	name := line.Product.Name
	if name == "" {
		name = line.Description
	}
	item.CreateElement("cbc:Name").SetText(name)
	if line.Product.Code != "" {
		item.CreateElement("cac:SellersItemIdentification").
			CreateElement("cbc:ID").SetText(line.Product.Code)
	}
	if line.Product.Barcode != "" {
		sid := item.CreateElement("cac:StandardItemIdentification")
		id := sid.CreateElement("cbc:ID")
		id.CreateAttr("schemeID", "0160")
		id.SetText(line.Product.Barcode)
	}
}

// Inverse of the decode-side response code table
var statusResponseCode = map[string]string{
	model.StatusAcknowledgement: "AB",
	model.StatusAccepted:        "AP",
	model.StatusRejected:        "RE",
	model.StatusConditional:     "CA",
}

// EncodeOrderResponse renders an order acknowledgement referencing the
// originating order
func (e *Encoder) EncodeOrderResponse(doc *model.Document) ([]byte, error) {
	currency := doc.Currency.ISO
	if currency == "" {
		currency = "EUR"
	}
	tree, root := e.newRoot(model.KindOrderResponse)
	root.CreateElement("cbc:UBLVersionID").SetText("2.1")
	root.CreateElement("cbc:ID").SetText(doc.Reference)
	if !doc.IssueDate.IsZero() {
		root.CreateElement("cbc:IssueDate").SetText(doc.IssueDate.Format("2006-01-02"))
	}
	if doc.ResponseStatus != "" {
		code, ok := statusResponseCode[doc.ResponseStatus]
		if !ok {
			return nil, model.NewParseError("ubl", "OrderResponseCode",
				"unknown response status "+doc.ResponseStatus, nil)
		}
		root.CreateElement("cbc:OrderResponseCode").SetText(code)
	}
	root.CreateElement("cbc:DocumentCurrencyCode").SetText(currency)
	if doc.Origin != "" {
		root.CreateElement("cac:OrderReference").
			CreateElement("cbc:ID").SetText(doc.Origin)
	}
	addParty(root.CreateElement("cac:SellerSupplierParty").CreateElement("cac:Party"), doc.Company)
	addParty(root.CreateElement("cac:BuyerCustomerParty").CreateElement("cac:Party"), doc.Partner)

	for _, line := range doc.Lines {
		if line.SectionHeader {
			continue
		}
		wrapper := root.CreateElement("cac:OrderLine")
		e.addOrderLineItem(wrapper, currency, line)
	}
	return e.serialize(tree)
}
