package model

import (
	"fmt"
	"sort"
	"strings"
)

// ParseError represents parsing errors with format and field context
type ParseError struct {
	Format  string // wire format being decoded, e.g. "ubl", "edifact"
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Format, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Format, e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(format, field, message string, cause error) *ParseError {
	return &ParseError{Format: format, Field: field, Message: message, Cause: cause}
}

// MalformedDocumentError reports a document missing mandatory containers
type MalformedDocumentError struct {
	Kind    DocKind
	Message string
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed %s document: %s", e.Kind, e.Message)
}

// InvalidFormatError reports a structurally invalid payload (schema
// validation failure or broken envelope). Fatal for the document
type InvalidFormatError struct {
	Format  string
	Message string
	Cause   error
}

func (e *InvalidFormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid %s document: %s (%v)", e.Format, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid %s document: %s", e.Format, e.Message)
}

func (e *InvalidFormatError) Unwrap() error {
	return e.Cause
}

// UnsupportedVariantError reports a recognized root with no registered decoder
type UnsupportedVariantError struct {
	Format string
	Root   string
}

func (e *UnsupportedVariantError) Error() string {
	return fmt.Sprintf("unsupported %s document variant %q", e.Format, e.Root)
}

// MalformedInterchangeError reports EDIFACT segment shape/count violations
type MalformedInterchangeError struct {
	Segment string
	Message string
}

func (e *MalformedInterchangeError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("malformed interchange at segment %s: %s", e.Segment, e.Message)
	}
	return fmt.Sprintf("malformed interchange: %s", e.Message)
}

// MissingPartyIdentifierError is raised on encode when a party lacks the
// EDI identifier required for the interchange envelope
type MissingPartyIdentifierError struct {
	Party string
}

func (e *MissingPartyIdentifierError) Error() string {
	return fmt.Sprintf("party %q has no EDI identifier configured", e.Party)
}

// NotFoundError reports a catalog entity that could not be resolved.
// Only raised when the caller opted into strict matching
type NotFoundError struct {
	Entity  string // "partner", "product", ...
	Details map[string]string
}

func (e *NotFoundError) Error() string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		if v := e.Details[k]; v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("no %s matches the imported document (no identifying attribute provided)", e.Entity)
	}
	return fmt.Sprintf("no %s matches the imported document (%s)", e.Entity, strings.Join(parts, ", "))
}

// NoTemplateError reports that no extraction template recognized the text
type NoTemplateError struct {
	Tried int
}

func (e *NoTemplateError) Error() string {
	return fmt.Sprintf("no matching template among %d candidates", e.Tried)
}

// TemplateExtractionError reports required fields missing after extraction
type TemplateExtractionError struct {
	Template string
	Missing  []string
}

func (e *TemplateExtractionError) Error() string {
	return fmt.Sprintf("template %q: required fields missing: %s",
		e.Template, strings.Join(e.Missing, ", "))
}

// ExtractionError represents text-extraction backend failures
type ExtractionError struct {
	Method  string
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed [%s]: %s (%v)", e.Method, e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction failed [%s]: %s", e.Method, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
