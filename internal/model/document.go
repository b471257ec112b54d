// Package model defines the canonical, wire-format independent
// representation of a trade document. Every codec produces a Document on
// decode and accepts one on encode; the matching engine annotates it with
// resolved catalog identifiers.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocKind identifies the business meaning of a document
type DocKind string

const (
	KindInvoice        DocKind = "invoice"
	KindRefund         DocKind = "refund"
	KindOrder          DocKind = "order"
	KindRFQ            DocKind = "rfq"
	KindOrderResponse  DocKind = "order_response"
	KindDespatchAdvice DocKind = "despatch_advice"
	KindCatalogue      DocKind = "catalogue"
	KindUnknown        DocKind = ""
)

// Sub-status of an order response
const (
	StatusAcknowledgement = "acknowledgement"
	StatusAccepted        = "accepted"
	StatusRejected        = "rejected"
	StatusConditional     = "conditionally_accepted"
)

// RequiresLines reports whether a document of this kind is structurally
// incomplete without at least one line
func (k DocKind) RequiresLines() bool {
	switch k {
	case KindInvoice, KindRefund, KindOrder, KindDespatchAdvice, KindCatalogue:
		return true
	}
	return false
}

// Document is the canonical parsed document
type Document struct {
	Kind      DocKind
	Reference string // document number assigned by the issuing party
	Origin    string // reference to the originating document (e.g. order ref on an invoice)
	// ResponseStatus is the sub-status of an order response, one of the
	// Status constants. Empty on other kinds
	ResponseStatus string

	IssueDate    time.Time
	DueDate      time.Time
	DeliveryDate time.Time
	DespatchDate time.Time
	PeriodStart  time.Time
	PeriodEnd    time.Time

	Currency CurrencyRef

	Partner   PartyRef // the counter-party
	Company   PartyRef // the importing company, used as a sanity check
	ShipTo    PartyRef
	InvoiceTo PartyRef

	AmountUntaxed decimal.Decimal
	AmountTax     decimal.Decimal
	AmountTotal   decimal.Decimal

	IBAN string
	BIC  string

	Lines       []DocumentLine
	Attachments map[string][]byte
	Notes       []string

	// Messages collects warnings accumulated during parsing and matching.
	// They are never dropped: the caller surfaces them next to the created
	// record so a human can audit the import.
	Messages Messages
}

// DocumentLine is one line of a document
type DocumentLine struct {
	Sequence    int
	Product     ProductRef
	Description string
	Quantity    decimal.Decimal
	UOM         UOMRef
	UnitPrice   decimal.Decimal
	// PriceSubtotal is the tax-excluded line amount as stated in the
	// source document, kept for cross-checking against qty * unit price
	PriceSubtotal   decimal.Decimal
	DiscountPercent decimal.Decimal
	Taxes           []TaxRef
	DateStart       time.Time
	DateEnd         time.Time
	Note            string
	SectionHeader   bool
	// BackorderQty is the outstanding quantity on a despatch advice line
	BackorderQty decimal.Decimal
}

// Messages is an ordered warning/info collector
type Messages []string

// Add appends a formatted message
func (m *Messages) Add(format string, args ...interface{}) {
	*m = append(*m, fmt.Sprintf(format, args...))
}

// Warn appends a formatted warning to the document messages
func (d *Document) Warn(format string, args ...interface{}) {
	d.Messages.Add(format, args...)
}

// AddAttachment records an embedded file found in the source payload
func (d *Document) AddAttachment(filename string, data []byte) {
	if d.Attachments == nil {
		d.Attachments = map[string][]byte{}
	}
	d.Attachments[filename] = data
}

// CheckStructure verifies the mandatory containers for the document kind
func (d *Document) CheckStructure() error {
	if d.Kind.RequiresLines() && len(d.Lines) == 0 {
		return &MalformedDocumentError{
			Kind:    d.Kind,
			Message: "document has no lines",
		}
	}
	return nil
}
