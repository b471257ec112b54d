package edifact

// Qualifier families are closed enums. Every dispatch site switches
// exhaustively over the known values with an explicit unknown arm that
// logs and skips the segment, since live EDI streams routinely carry
// qualifiers the importer does not use.

// PartyQualifier is the NAD party function code
type PartyQualifier string

const (
	PartyBuyer    PartyQualifier = "BY"
	PartySupplier PartyQualifier = "SU"
	PartyDelivery PartyQualifier = "DP"
	PartyInvoicee PartyQualifier = "IV"
)

func parsePartyQualifier(code string) (PartyQualifier, bool) {
	switch PartyQualifier(code) {
	case PartyBuyer, PartySupplier, PartyDelivery, PartyInvoicee:
		return PartyQualifier(code), true
	}
	return "", false
}

// RefQualifier is the RFF reference code
type RefQualifier string

const (
	RefOrderNumber  RefQualifier = "ON"
	RefDeliveryNote RefQualifier = "DQ"
	RefVATNumber    RefQualifier = "VA"
	RefCustomerRef  RefQualifier = "CR"
	RefPromotion    RefQualifier = "PD"
	RefAccount      RefQualifier = "ADE"
)

func parseRefQualifier(code string) (RefQualifier, bool) {
	switch RefQualifier(code) {
	case RefOrderNumber, RefDeliveryNote, RefVATNumber,
		RefCustomerRef, RefPromotion, RefAccount:
		return RefQualifier(code), true
	}
	return "", false
}

// DateQualifier is the DTM date/time function code
type DateQualifier string

const (
	DateDocument      DateQualifier = "137"
	DateDelivery      DateQualifier = "35"
	DateDespatch      DateQualifier = "11"
	DateValidityStart DateQualifier = "63"
	DateValidityEnd   DateQualifier = "64"
	DateDue           DateQualifier = "13"
	DateReference     DateQualifier = "171"
)

func parseDateQualifier(code string) (DateQualifier, bool) {
	switch DateQualifier(code) {
	case DateDocument, DateDelivery, DateDespatch,
		DateValidityStart, DateValidityEnd, DateDue, DateReference:
		return DateQualifier(code), true
	}
	return "", false
}

// DTM format qualifiers and their Go layouts
var dtmLayouts = map[string]string{
	"102": "20060102",
	"203": "200601021504",
	"204": "20060102150405",
}

// agencyGLN is the code-list responsible-agency value identifying GS1,
// whose party identifiers are GLNs
const agencyGLN = "9"

// quantityQualifiers we read from QTY segments: invoiced, ordered,
// delivered, backorder
const (
	qtyInvoiced  = "47"
	qtyOrdered   = "21"
	qtyDelivered = "12"
	qtyBackorder = "83"
)

// priceQualifiers: AAA is the calculation net price, AAB the gross
const (
	priNet   = "AAA"
	priGross = "AAB"
)
