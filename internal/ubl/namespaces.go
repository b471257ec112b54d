// Package ubl decodes and encodes OASIS UBL 2.1 business documents:
// invoices, credit notes, orders, requests for quotation, order responses,
// despatch advices and catalogues. Parsing is tolerant (warnings over
// failures wherever the document stays usable); generation targets the
// EN 16931 profile with an optional PEPPOL BIS 3.0 pass.
package ubl

import "github.com/rezonia/docexchange/internal/model"

const (
	nsCAC = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	nsCBC = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"

	nsInvoice        = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsCreditNote     = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"
	nsOrder          = "urn:oasis:names:specification:ubl:schema:xsd:Order-2"
	nsRFQ            = "urn:oasis:names:specification:ubl:schema:xsd:RequestForQuotation-2"
	nsOrderResponse  = "urn:oasis:names:specification:ubl:schema:xsd:OrderResponse-2"
	nsOrderRespSimp  = "urn:oasis:names:specification:ubl:schema:xsd:OrderResponseSimple-2"
	nsDespatchAdvice = "urn:oasis:names:specification:ubl:schema:xsd:DespatchAdvice-2"
	nsCatalogue      = "urn:oasis:names:specification:ubl:schema:xsd:Catalogue-2"
)

// rootKinds maps a UBL root element local name to the document kind.
// CreditNote maps to refund; the invoice type code can still flip an
// Invoice root to refund when it carries 381
var rootKinds = map[string]model.DocKind{
	"Invoice":             model.KindInvoice,
	"CreditNote":          model.KindRefund,
	"Order":               model.KindOrder,
	"RequestForQuotation": model.KindRFQ,
	"OrderResponse":       model.KindOrderResponse,
	"OrderResponseSimple": model.KindOrderResponse,
	"DespatchAdvice":      model.KindDespatchAdvice,
	"Catalogue":           model.KindCatalogue,
}

// rootNamespaces maps the document kind back to the root element name and
// namespace used on encode. Refunds have no entry: they encode on the
// Invoice root with type code 381
var rootNamespaces = map[model.DocKind]struct {
	Root string
	NS   string
}{
	model.KindInvoice:       {"Invoice", nsInvoice},
	model.KindOrder:         {"Order", nsOrder},
	model.KindRFQ:           {"RequestForQuotation", nsRFQ},
	model.KindOrderResponse: {"OrderResponse", nsOrderResponse},
}
