// Package processor chains the codecs and extraction backends into one
// import pipeline: structured formats decode directly, PDFs cascade from
// embedded XML through templates down to the LLM fallback.
package processor

import "bytes"

// Format identifies the container format of an input payload
type Format string

const (
	FormatXML     Format = "xml"
	FormatPDF     Format = "pdf"
	FormatEDIFACT Format = "edifact"
	FormatImage   Format = "image"
	FormatUnknown Format = "unknown"
)

// Method names the backend that produced a result
type Method string

const (
	MethodUBL         Method = "ubl"
	MethodEDIFACT     Method = "edifact"
	MethodEmbeddedXML Method = "embedded_xml"
	MethodTemplate    Method = "template"
	MethodLLM         Method = "llm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat sniffs the payload's container format from its leading
// bytes
func DetectFormat(data []byte) Format {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(data) < 4 {
		return FormatUnknown
	}
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return FormatPDF
	case data[0] == '<':
		return FormatXML
	case bytes.HasPrefix(data, []byte("UNA")), bytes.HasPrefix(data, []byte("UNB")):
		return FormatEDIFACT
	case data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G':
		return FormatImage
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatImage
	}
	return FormatUnknown
}

// DetectMimeType returns the MIME type for image payloads handed to the
// vision fallback
func DetectMimeType(data []byte) string {
	switch DetectFormat(data) {
	case FormatPDF:
		return "application/pdf"
	case FormatXML:
		return "application/xml"
	}
	if len(data) >= 4 {
		if data[0] == 0x89 && data[1] == 'P' {
			return "image/png"
		}
		if data[0] == 0xFF && data[1] == 0xD8 {
			return "image/jpeg"
		}
	}
	return "application/octet-stream"
}
