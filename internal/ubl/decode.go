package ubl

import (
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rezonia/docexchange/internal/logging"
	"github.com/rezonia/docexchange/internal/model"
)

// Decode parses a UBL payload into the canonical document model. The root
// element decides the document kind; an Invoice root carrying type code
// 381 becomes a refund. Recoverable oddities are recorded as warnings on
// the document, only structural breakage returns an error
func Decode(data []byte) (*model.Document, error) {
	return DecodeWith(data, nil)
}

// DecodeWith runs the payload through a schema validator before mapping.
// A nil validator skips the check
func DecodeWith(data []byte, validator SchemaValidator) (*model.Document, error) {
	if validator != nil {
		if err := validator.Validate(data); err != nil {
			return nil, &model.InvalidFormatError{Format: "ubl", Message: "schema validation failed", Cause: err}
		}
	}
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, &model.InvalidFormatError{Format: "ubl", Message: "broken XML", Cause: err}
	}
	root := tree.Root()
	if root == nil {
		return nil, &model.InvalidFormatError{Format: "ubl", Message: "empty document"}
	}
	kind, ok := rootKinds[root.Tag]
	if !ok {
		return nil, &model.UnsupportedVariantError{Format: "ubl", Root: root.Tag}
	}

	doc := &model.Document{Kind: kind}
	var err error
	switch kind {
	case model.KindInvoice, model.KindRefund:
		err = decodeInvoice(root, doc)
	case model.KindOrder, model.KindRFQ:
		err = decodeOrder(root, doc)
	case model.KindOrderResponse:
		err = decodeOrderResponse(root, doc)
	case model.KindDespatchAdvice:
		err = decodeDespatchAdvice(root, doc)
	case model.KindCatalogue:
		err = decodeCatalogue(root, doc)
	}
	if err != nil {
		return nil, err
	}
	if err := doc.CheckStructure(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeHeader(root *etree.Element, doc *model.Document) {
	doc.Reference = text(root, "ID")
	doc.IssueDate = date(root, "IssueDate")
	doc.Currency = model.CurrencyRef{ISO: text(root, "DocumentCurrencyCode")}
	for _, note := range children(root, "Note") {
		if note.Text() != "" {
			doc.Notes = append(doc.Notes, note.Text())
		}
	}
	if ref := text(root, "OrderReference", "ID"); ref != "" {
		doc.Origin = ref
	}
}

func decodeInvoice(root *etree.Element, doc *model.Document) error {
	decodeHeader(root, doc)

	if code := text(root, "InvoiceTypeCode"); code != "" {
		switch code {
		case "380":
			doc.Kind = model.KindInvoice
		case "381":
			doc.Kind = model.KindRefund
		default:
			doc.Warn("unknown invoice type code %s, assuming a regular invoice", code)
		}
	}

	doc.DueDate = date(root, "DueDate")
	if doc.DueDate.IsZero() {
		doc.DueDate = date(root, "PaymentMeans", "PaymentDueDate")
	}
	if period := child(root, "InvoicePeriod"); period != nil {
		doc.PeriodStart = date(period, "StartDate")
		doc.PeriodEnd = date(period, "EndDate")
	}

	doc.Partner = parseParty(descend(root, "AccountingSupplierParty", "Party"))
	doc.Company = parseParty(descend(root, "AccountingCustomerParty", "Party"))
	doc.ShipTo = parseDelivery(child(root, "Delivery"))
	checkVAT(&doc.Partner, doc)

	decodePaymentMeans(root, doc)
	decodeAttachments(root, doc)

	totals := child(root, "LegalMonetaryTotal")
	doc.AmountUntaxed = amount(totals, "TaxExclusiveAmount")
	doc.AmountTotal = amount(totals, "TaxInclusiveAmount")
	if doc.AmountTotal.IsZero() {
		doc.AmountTotal = amount(totals, "PayableAmount")
	}
	doc.AmountTax = amount(root, "TaxTotal", "TaxAmount")

	lineTag := "InvoiceLine"
	qtyTag := "InvoicedQuantity"
	if root.Tag == "CreditNote" {
		lineTag = "CreditNoteLine"
		qtyTag = "CreditedQuantity"
	}
	lineSum := decimal.Zero
	stated := decimal.Zero
	for i, lineEl := range children(root, lineTag) {
		line, err := decodeInvoiceLine(lineEl, qtyTag, i+1, doc)
		if err != nil {
			return err
		}
		doc.Lines = append(doc.Lines, line)
		lineSum = lineSum.Add(line.Quantity.Mul(line.UnitPrice))
		stated = stated.Add(line.PriceSubtotal)
	}
	// Cross-check the stated line extension amounts against qty * price.
	// Sources with odd price quantities or untransmitted discounts trip
	// this; the document is still imported
	if !stated.IsZero() && lineSum.Sub(stated).Abs().GreaterThan(decimal.New(5, -2)) {
		doc.Warn("the sum of line amounts %s doesn't match the stated line totals %s",
			lineSum.StringFixed(2), stated.StringFixed(2))
	}
	return nil
}

func decodeInvoiceLine(el *etree.Element, qtyTag string, seq int, doc *model.Document) (model.DocumentLine, error) {
	line := model.DocumentLine{Sequence: seq, Quantity: decimal.NewFromInt(1)}

	if qtyEl := child(el, qtyTag); qtyEl != nil {
		qty, err := decimal.NewFromString(qtyEl.Text())
		if err != nil {
			return line, model.NewParseError("ubl", qtyTag, "invalid quantity "+qtyEl.Text(), err)
		}
		line.Quantity = qty
		line.UOM = model.UOMRef{UNECECode: qtyEl.SelectAttrValue("unitCode", "")}
	}

	item := child(el, "Item")
	line.Description = text(item, "Description")
	if line.Description == "" {
		line.Description = text(item, "Name")
	}
	line.Product = parseItemProduct(item)
	line.Taxes = parseItemTaxes(item, el, doc)

	sub, err := amountErr(el, "LineExtensionAmount", "LineExtensionAmount")
	if err != nil {
		return line, err
	}
	line.PriceSubtotal = sub

	// The unit price comes from cac:Price; a price without an explicit
	// PriceAmount is reconstructed from the line amount
	if price := child(el, "Price"); price != nil && child(price, "PriceAmount") != nil {
		pa, err := amountErr(price, "PriceAmount", "PriceAmount")
		if err != nil {
			return line, err
		}
		line.UnitPrice = pa
		if bq := amount(price, "BaseQuantity"); !bq.IsZero() && !bq.Equal(decimal.NewFromInt(1)) {
			line.UnitPrice = pa.Div(bq)
		}
	} else if !line.Quantity.IsZero() {
		line.UnitPrice = sub.Div(line.Quantity)
	}

	if period := child(el, "InvoicePeriod"); period != nil {
		line.DateStart = date(period, "StartDate")
		line.DateEnd = date(period, "EndDate")
	}
	return line, nil
}

func parseItemProduct(item *etree.Element) model.ProductRef {
	var ref model.ProductRef
	if item == nil {
		return ref
	}
	ref.Name = text(item, "Name")
	ref.Code = text(item, "SellersItemIdentification", "ID")
	if std := descend(item, "StandardItemIdentification", "ID"); std != nil {
		scheme := std.SelectAttrValue("schemeID", "")
		if scheme == "" || scheme == "0160" || scheme == "GTIN" {
			ref.Barcode = std.Text()
		}
	}
	return ref
}

// parseItemTaxes reads the line taxes from cac:ClassifiedTaxCategory,
// falling back to the per-line TaxTotal breakdown some producers emit
// instead. Category H (household services) is folded into the standard
// category for rate matching
func parseItemTaxes(item, lineEl *etree.Element, doc *model.Document) []model.TaxRef {
	var cats []*etree.Element
	if item != nil {
		cats = children(item, "ClassifiedTaxCategory")
	}
	if len(cats) == 0 && lineEl != nil {
		for _, tt := range children(lineEl, "TaxTotal") {
			for _, ts := range children(tt, "TaxSubtotal") {
				if cat := child(ts, "TaxCategory"); cat != nil {
					cats = append(cats, cat)
				}
			}
		}
	}
	var taxes []model.TaxRef
	for _, cat := range cats {
		percentStr := text(cat, "Percent")
		if percentStr == "" {
			continue
		}
		percent, err := decimal.NewFromString(percentStr)
		if err != nil {
			doc.Warn("ignoring tax category with invalid percent %q", percentStr)
			continue
		}
		categ := text(cat, "ID")
		if categ == "H" {
			categ = "S"
		}
		taxes = append(taxes, model.TaxRef{
			AmountType:     "percent",
			Amount:         percent,
			UNECECategCode: categ,
			UNECETypeCode:  text(cat, "TaxScheme", "ID"),
		})
	}
	return taxes
}

// checkVAT drops a structurally implausible counter-party VAT with a
// warning so a typo on the seller side cannot poison catalog matching
func checkVAT(ref *model.PartyRef, doc *model.Document) {
	if ref.VAT != "" && !model.IsPlausibleVAT(ref.VAT) {
		doc.Warn("the VAT number %q is not structurally valid and was discarded", ref.VAT)
		ref.VAT = ""
	}
}

func decodePaymentMeans(root *etree.Element, doc *model.Document) {
	pm := child(root, "PaymentMeans")
	if pm == nil {
		return
	}
	acct := child(pm, "PayeeFinancialAccount")
	if acct == nil {
		return
	}
	iban := text(acct, "ID")
	if iban != "" {
		if model.IsValidIBAN(iban) {
			doc.IBAN = iban
		} else {
			doc.Warn("the IBAN %s fails checksum validation and was discarded", iban)
		}
	}
	doc.BIC = text(acct, "FinancialInstitutionBranch", "FinancialInstitution", "ID")
	if doc.BIC == "" {
		doc.BIC = text(acct, "FinancialInstitutionBranch", "ID")
	}
}

func decodeAttachments(root *etree.Element, doc *model.Document) {
	for _, ref := range children(root, "AdditionalDocumentReference") {
		obj := descend(ref, "Attachment", "EmbeddedDocumentBinaryObject")
		if obj == nil {
			continue
		}
		name := obj.SelectAttrValue("filename", "")
		if name == "" {
			name = text(ref, "ID")
		}
		if name == "" {
			name = fmt.Sprintf("attachment-%d", len(doc.Attachments)+1)
		}
		data, err := base64.StdEncoding.DecodeString(obj.Text())
		if err != nil {
			doc.Warn("embedded document %q is not valid base64 and was skipped", name)
			continue
		}
		doc.AddAttachment(name, data)
	}
}

func decodeOrder(root *etree.Element, doc *model.Document) error {
	decodeHeader(root, doc)
	doc.Partner = parseParty(descend(root, "BuyerCustomerParty", "Party"))
	doc.Company = parseParty(descend(root, "SellerSupplierParty", "Party"))
	doc.ShipTo = parseDelivery(child(root, "Delivery"))
	checkVAT(&doc.Partner, doc)

	lineTag := "OrderLine"
	if root.Tag == "RequestForQuotation" {
		lineTag = "RequestForQuotationLine"
	}
	for i, wrapper := range children(root, lineTag) {
		lineItem := child(wrapper, "LineItem")
		if lineItem == nil {
			logging.WithField("line", i+1).Warn("order line without LineItem, skipped")
			continue
		}
		line, err := decodeOrderLine(lineItem, i+1)
		if err != nil {
			return err
		}
		doc.Lines = append(doc.Lines, line)
	}
	return nil
}

func decodeOrderLine(el *etree.Element, seq int) (model.DocumentLine, error) {
	line := model.DocumentLine{Sequence: seq, Quantity: decimal.NewFromInt(1)}

	if qtyEl := child(el, "Quantity"); qtyEl != nil {
		qty, err := decimal.NewFromString(qtyEl.Text())
		if err != nil {
			return line, model.NewParseError("ubl", "Quantity", "invalid quantity "+qtyEl.Text(), err)
		}
		line.Quantity = qty
		line.UOM = model.UOMRef{UNECECode: qtyEl.SelectAttrValue("unitCode", "")}
	}

	item := child(el, "Item")
	line.Description = text(item, "Description")
	if line.Description == "" {
		line.Description = text(item, "Name")
	}
	line.Product = parseItemProduct(item)

	pa, err := amountErr(child(el, "Price"), "PriceAmount", "PriceAmount")
	if err != nil {
		return line, err
	}
	line.UnitPrice = pa
	line.PriceSubtotal = amount(el, "LineExtensionAmount")

	if delivery := child(el, "Delivery"); delivery != nil {
		if period := child(delivery, "RequestedDeliveryPeriod"); period != nil {
			line.DateStart = date(period, "StartDate")
			line.DateEnd = date(period, "EndDate")
		}
	}
	return line, nil
}

// UNECE 4343 codes carried by cbc:OrderResponseCode
var responseCodeStatus = map[string]string{
	"AB": model.StatusAcknowledgement,
	"AP": model.StatusAccepted,
	"RE": model.StatusRejected,
	"CA": model.StatusConditional,
}

func decodeOrderResponse(root *etree.Element, doc *model.Document) error {
	decodeHeader(root, doc)
	doc.Origin = text(root, "OrderReference", "ID")
	// OrderResponseCode is optional; an unknown code is kept out of the
	// document rather than guessed at
	if code := text(root, "OrderResponseCode"); code != "" {
		status, ok := responseCodeStatus[code]
		if !ok {
			doc.Warn("unknown order response code %q", code)
		} else {
			doc.ResponseStatus = status
		}
	}
	doc.Partner = parseParty(descend(root, "SellerSupplierParty", "Party"))
	doc.Company = parseParty(descend(root, "BuyerCustomerParty", "Party"))
	checkVAT(&doc.Partner, doc)

	for i, wrapper := range children(root, "OrderLine") {
		lineItem := child(wrapper, "LineItem")
		if lineItem == nil {
			continue
		}
		line, err := decodeOrderLine(lineItem, i+1)
		if err != nil {
			return err
		}
		doc.Lines = append(doc.Lines, line)
	}
	return nil
}

func decodeDespatchAdvice(root *etree.Element, doc *model.Document) error {
	decodeHeader(root, doc)
	doc.Partner = parseParty(descend(root, "DespatchSupplierParty", "Party"))
	doc.Company = parseParty(descend(root, "DeliveryCustomerParty", "Party"))

	for i, el := range children(root, "DespatchLine") {
		line := model.DocumentLine{Sequence: i + 1, Quantity: decimal.NewFromInt(1)}
		if qtyEl := child(el, "DeliveredQuantity"); qtyEl != nil {
			qty, err := decimal.NewFromString(qtyEl.Text())
			if err != nil {
				return model.NewParseError("ubl", "DeliveredQuantity", "invalid quantity "+qtyEl.Text(), err)
			}
			line.Quantity = qty
			line.UOM = model.UOMRef{UNECECode: qtyEl.SelectAttrValue("unitCode", "")}
		}
		line.BackorderQty = amount(el, "OutstandingQuantity")
		item := child(el, "Item")
		line.Description = text(item, "Name")
		line.Product = parseItemProduct(item)
		doc.Lines = append(doc.Lines, line)
	}
	return nil
}

func decodeCatalogue(root *etree.Element, doc *model.Document) error {
	decodeHeader(root, doc)
	doc.Partner = parseParty(descend(root, "ProviderParty"))
	doc.Company = parseParty(descend(root, "ReceiverParty"))

	for i, el := range children(root, "CatalogueLine") {
		line := model.DocumentLine{Sequence: i + 1, Quantity: decimal.NewFromInt(1)}
		item := child(el, "Item")
		line.Description = text(item, "Name")
		line.Product = parseItemProduct(item)
		if rilq := child(el, "RequiredItemLocationQuantity"); rilq != nil {
			line.UnitPrice = amount(rilq, "Price", "PriceAmount")
		}
		doc.Lines = append(doc.Lines, line)
	}
	return nil
}
