package pdftemplate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/docexchange/internal/model"
)

// Well-known field names bridged into the canonical document. Template
// authors are free to add extra fields; only these are mapped, the rest
// stay available in Result.Fields for caller-specific handling.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldDate          = "date"
	FieldDateDue       = "date_due"
	FieldOrderRef      = "order_reference"
	FieldAmountUntaxed = "amount_untaxed"
	FieldAmountTax     = "amount_tax"
	FieldAmountTotal   = "amount_total"
	FieldCurrency      = "currency"
	FieldPartnerName   = "partner_name"
	FieldPartnerVAT    = "partner_vat"
	FieldPartnerEmail  = "partner_email"
	FieldIBAN          = "iban"
	FieldBIC           = "bic"
	// FieldPartnerID carries a catalog identifier produced by a
	// search_field rule
	FieldPartnerID = "partner_id"

	LineDescription = "description"
	LineQuantity    = "quantity"
	LineUnitPrice   = "price_unit"
	LineProductCode = "product_code"
	LineBarcode     = "barcode"
	// LineProductID carries a catalog identifier produced by a
	// search_field rule
	LineProductID = "product_id"
)

// ToDocument converts an extraction result into a canonical document.
// A refund is produced when the extracted total is negative
func (r *Result) ToDocument() *model.Document {
	doc := &model.Document{Kind: model.KindInvoice}
	doc.Messages = append(doc.Messages, r.Messages...)

	doc.Reference = r.str(FieldInvoiceNumber)
	doc.Origin = r.str(FieldOrderRef)
	doc.IssueDate = r.date(FieldDate)
	doc.DueDate = r.date(FieldDateDue)
	doc.AmountUntaxed = r.dec(FieldAmountUntaxed)
	doc.AmountTax = r.dec(FieldAmountTax)
	doc.AmountTotal = r.dec(FieldAmountTotal)
	doc.Currency = model.CurrencyRef{ISOOrSymbol: r.str(FieldCurrency)}
	doc.Partner = model.PartyRef{
		Name:       r.str(FieldPartnerName),
		Email:      r.str(FieldPartnerEmail),
		ResolvedID: r.str(FieldPartnerID),
	}
	if vat := r.str(FieldPartnerVAT); vat != "" {
		vat = model.CleanVAT(vat)
		if model.IsPlausibleVAT(vat) {
			doc.Partner.VAT = vat
		} else {
			doc.Warn("the extracted VAT number %q is not structurally valid and was discarded", vat)
		}
	}
	if iban := r.str(FieldIBAN); iban != "" {
		if model.IsValidIBAN(iban) {
			doc.IBAN = iban
		} else {
			doc.Warn("the extracted IBAN %s fails checksum validation and was discarded", iban)
		}
	}
	doc.BIC = r.str(FieldBIC)

	if doc.AmountTotal.IsNegative() {
		doc.Kind = model.KindRefund
		doc.AmountTotal = doc.AmountTotal.Abs()
		doc.AmountUntaxed = doc.AmountUntaxed.Abs()
		doc.AmountTax = doc.AmountTax.Abs()
	}

	for i, rec := range r.Lines {
		line := model.DocumentLine{Sequence: i + 1, Quantity: decimal.NewFromInt(1)}
		if v, ok := rec[LineDescription].(string); ok {
			line.Description = v
		}
		if v, ok := rec[LineQuantity].(decimal.Decimal); ok {
			line.Quantity = v
		}
		if v, ok := rec[LineUnitPrice].(decimal.Decimal); ok {
			line.UnitPrice = v
		}
		if v, ok := rec[LineProductCode].(string); ok {
			line.Product.Code = v
		}
		if v, ok := rec[LineBarcode].(string); ok {
			line.Product.Barcode = v
		}
		if v, ok := rec[LineProductID].(string); ok {
			line.Product.ResolvedID = v
		}
		doc.Lines = append(doc.Lines, line)
	}

	// Many supplier invoices are imported header-only: a single synthetic
	// line carries the untaxed amount so totals still validate
	if len(doc.Lines) == 0 && !doc.AmountUntaxed.IsZero() {
		doc.Lines = append(doc.Lines, model.DocumentLine{
			Sequence:    1,
			Description: doc.Reference,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   doc.AmountUntaxed,
		})
	}
	return doc
}

func (r *Result) str(name string) string {
	v, _ := r.Fields[name].(string)
	return v
}

func (r *Result) date(name string) time.Time {
	v, _ := r.Fields[name].(time.Time)
	return v
}

func (r *Result) dec(name string) decimal.Decimal {
	v, ok := r.Fields[name].(decimal.Decimal)
	if !ok {
		return decimal.Zero
	}
	return v
}
