package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/docexchange/internal/model"
)

// Extractor turns free-form document text or images into a canonical
// document via a chat model
type Extractor struct {
	Client *Client
	Model  string
}

// NewExtractor builds an extractor over an existing client
func NewExtractor(client *Client, model string) *Extractor {
	return &Extractor{Client: client, Model: model}
}

// wireDocument mirrors the JSON schema the prompts ask for. Amounts are
// kept as json.Number so "20" and "20.0" both survive exactly
type wireDocument struct {
	DocumentType   string      `json:"document_type"`
	Reference      string      `json:"reference"`
	OrderReference string      `json:"order_reference"`
	Date           string      `json:"date"`
	DateDue        string      `json:"date_due"`
	Currency       string      `json:"currency"`
	Partner        wireParty   `json:"partner"`
	IBAN           string      `json:"iban"`
	BIC            string      `json:"bic"`
	Lines          []wireLine  `json:"lines"`
	AmountUntaxed  json.Number `json:"amount_untaxed"`
	AmountTax      json.Number `json:"amount_tax"`
	AmountTotal    json.Number `json:"amount_total"`
	Notes          string      `json:"notes"`
}

type wireParty struct {
	Name        string `json:"name"`
	VAT         string `json:"vat"`
	Email       string `json:"email"`
	Street      string `json:"street"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	CountryCode string `json:"country_code"`
}

type wireLine struct {
	Description string      `json:"description"`
	ProductCode string      `json:"product_code"`
	Barcode     string      `json:"barcode"`
	Quantity    json.Number `json:"quantity"`
	UnitPrice   json.Number `json:"unit_price"`
	UOM         string      `json:"uom"`
	TaxRate     json.Number `json:"tax_rate"`
}

// ExtractText extracts a document from raw text
func (e *Extractor) ExtractText(ctx context.Context, text string) (*model.Document, error) {
	resp, err := e.Client.ChatText(ctx, e.Model, SystemPromptDocumentExtractor,
		fmt.Sprintf(UserPromptTextExtraction, text))
	if err != nil {
		return nil, &model.ExtractionError{Method: "llm", Message: "chat request failed", Cause: err}
	}
	return ParseResponse(resp)
}

// ExtractImage extracts a document from a scanned page image
func (e *Extractor) ExtractImage(ctx context.Context, imageData []byte, mimeType string) (*model.Document, error) {
	resp, err := e.Client.ChatWithImage(ctx, e.Model, SystemPromptDocumentExtractor,
		UserPromptImageExtraction, imageData, mimeType)
	if err != nil {
		return nil, &model.ExtractionError{Method: "llm", Message: "chat request failed", Cause: err}
	}
	return ParseResponse(resp)
}

// ParseResponse converts a model response into a canonical document
func ParseResponse(resp string) (*model.Document, error) {
	payload := ExtractJSON(resp)

	var wire wireDocument
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return nil, &model.ExtractionError{Method: "llm", Message: "response is not valid JSON", Cause: err}
	}
	return wire.toDocument(), nil
}

func (w *wireDocument) toDocument() *model.Document {
	doc := &model.Document{Kind: model.KindInvoice}
	switch w.DocumentType {
	case "refund":
		doc.Kind = model.KindRefund
	case "order":
		doc.Kind = model.KindOrder
	}

	doc.Reference = w.Reference
	doc.Origin = w.OrderReference
	doc.IssueDate = parseWireDate(doc, "date", w.Date)
	doc.DueDate = parseWireDate(doc, "date_due", w.DateDue)
	doc.AmountUntaxed = num(w.AmountUntaxed)
	doc.AmountTax = num(w.AmountTax)
	doc.AmountTotal = num(w.AmountTotal)
	doc.Currency = model.CurrencyRef{ISOOrSymbol: w.Currency}
	if w.Notes != "" {
		doc.Notes = append(doc.Notes, w.Notes)
	}
	doc.BIC = w.BIC

	doc.Partner = model.PartyRef{
		Name:        w.Partner.Name,
		Email:       w.Partner.Email,
		Street:      w.Partner.Street,
		City:        w.Partner.City,
		Zip:         w.Partner.Zip,
		CountryCode: w.Partner.CountryCode,
	}
	if w.Partner.VAT != "" {
		vat := model.CleanVAT(w.Partner.VAT)
		if model.IsPlausibleVAT(vat) {
			doc.Partner.VAT = vat
		} else {
			doc.Warn("the extracted VAT number %q is not structurally valid and was discarded", w.Partner.VAT)
		}
	}
	if w.IBAN != "" {
		if model.IsValidIBAN(w.IBAN) {
			doc.IBAN = w.IBAN
		} else {
			doc.Warn("the extracted IBAN %s fails checksum validation and was discarded", w.IBAN)
		}
	}

	for i, wl := range w.Lines {
		line := model.DocumentLine{
			Sequence:    i + 1,
			Description: wl.Description,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   num(wl.UnitPrice),
			Product:     model.ProductRef{Code: wl.ProductCode, Barcode: wl.Barcode},
			UOM:         model.UOMRef{Name: wl.UOM},
		}
		if q := num(wl.Quantity); !q.IsZero() {
			line.Quantity = q
		}
		if wl.TaxRate != "" {
			line.Taxes = []model.TaxRef{{AmountType: "percent", Amount: num(wl.TaxRate)}}
		}
		doc.Lines = append(doc.Lines, line)
	}

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

func num(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseWireDate(doc *model.Document, field, raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := model.ParseDate(raw)
	if err != nil {
		doc.Warn("unparseable %s %q in extracted data", field, raw)
		return time.Time{}
	}
	return parsed
}
