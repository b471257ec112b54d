// Package docexchange provides the public API for converting electronic
// trade documents between UBL 2.1 XML, EDIFACT interchanges, PDF sources
// and a canonical document form, and for matching the decoded data
// against a business catalog.
//
// Example usage:
//
//	proc, err := docexchange.NewProcessor(docexchange.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := proc.Process(ctx, reader)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Document.Reference)
package docexchange

import (
	"github.com/rezonia/docexchange/internal/match"
	"github.com/rezonia/docexchange/internal/model"
)

// Re-export core types for the public API
type (
	Document     = model.Document
	DocumentLine = model.DocumentLine
	DocKind      = model.DocKind
	Messages     = model.Messages

	PartyRef    = model.PartyRef
	ProductRef  = model.ProductRef
	TaxRef      = model.TaxRef
	CurrencyRef = model.CurrencyRef
	UOMRef      = model.UOMRef
	AccountRef  = model.AccountRef
	IDNumber    = model.IDNumber
)

// Re-export document kinds
const (
	KindInvoice        = model.KindInvoice
	KindRefund         = model.KindRefund
	KindOrder          = model.KindOrder
	KindRFQ            = model.KindRFQ
	KindOrderResponse  = model.KindOrderResponse
	KindDespatchAdvice = model.KindDespatchAdvice
	KindCatalogue      = model.KindCatalogue
)

// Re-export error types
type (
	ParseError                  = model.ParseError
	InvalidFormatError          = model.InvalidFormatError
	MalformedDocumentError      = model.MalformedDocumentError
	MalformedInterchangeError   = model.MalformedInterchangeError
	MissingPartyIdentifierError = model.MissingPartyIdentifierError
	UnsupportedVariantError     = model.UnsupportedVariantError
	NotFoundError               = model.NotFoundError
	NoTemplateError             = model.NoTemplateError
	TemplateExtractionError     = model.TemplateExtractionError
	ExtractionError             = model.ExtractionError
)

// Re-export the catalog surface so callers can plug their own store
type (
	Catalog       = match.Catalog
	MemoryCatalog = match.MemoryCatalog
	Partner       = match.Partner
	Product       = match.Product
	Tax           = match.Tax
	Currency      = match.Currency
	UOM           = match.UOM
	Account       = match.Account
)
