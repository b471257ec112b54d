package llm

// Document extraction prompts

const SystemPromptDocumentExtractor = `You are an expert at reading business documents: supplier invoices, credit notes, purchase orders and order confirmations, in any language.

Your task is to extract structured data from document text or images.

Extract ALL information you can find. If a field is not present, omit it from the output.
Always output valid JSON that matches the specified schema.
Amounts must be plain decimal numbers with "." as the decimal separator and no thousands separators.
Dates must be in ISO 8601 format (YYYY-MM-DD).
VAT numbers must include the two-letter country prefix when visible.`

const documentSchema = `{
  "document_type": "invoice|refund|order",
  "reference": "string",
  "order_reference": "string",
  "date": "YYYY-MM-DD",
  "date_due": "YYYY-MM-DD",
  "currency": "ISO 4217 code",
  "partner": {
    "name": "string",
    "vat": "string",
    "email": "string",
    "street": "string",
    "city": "string",
    "zip": "string",
    "country_code": "ISO 3166-1 alpha-2"
  },
  "iban": "string",
  "bic": "string",
  "lines": [
    {
      "description": "string",
      "product_code": "string",
      "barcode": "string",
      "quantity": 1,
      "unit_price": 100.0,
      "uom": "string",
      "tax_rate": 20.0
    }
  ],
  "amount_untaxed": 100.0,
  "amount_tax": 20.0,
  "amount_total": 120.0,
  "notes": "string"
}`

const UserPromptTextExtraction = `Extract the document data from the following text:

---
%s
---

Output JSON with this structure:
` + documentSchema

const UserPromptImageExtraction = `Extract the document data from this image.

Output JSON with this structure:
` + documentSchema + `

Extract all visible information. For any text that appears blurry or unclear, make your best attempt to read it.`
