package processor

import (
	"context"

	"github.com/rezonia/docexchange/internal/edifact"
	"github.com/rezonia/docexchange/internal/llm"
	"github.com/rezonia/docexchange/internal/logging"
	"github.com/rezonia/docexchange/internal/match"
	"github.com/rezonia/docexchange/internal/model"
	"github.com/rezonia/docexchange/internal/pdftemplate"
	"github.com/rezonia/docexchange/internal/pdfxml"
	"github.com/rezonia/docexchange/internal/ubl"
)

// Confidence per extraction method. Structured formats are exact;
// everything below them degrades with the amount of guessing involved
const (
	confidenceStructured = 1.0
	confidenceEmbedded   = 0.95
	confidenceTemplate   = 0.7
	confidenceLLM        = 0.5
)

// Result is the outcome of one pipeline run
type Result struct {
	Document   *model.Document
	Method     Method
	Confidence float64
	Warnings   []string
	Error      error
}

// Pipeline runs format detection, decoding and catalog resolution
type Pipeline struct {
	resolver  *match.Resolver
	templates *pdftemplate.Engine
	texts     pdftemplate.TextExtractor
	llm       *llm.Extractor
}

// PipelineOption configures the pipeline
type PipelineOption func(*Pipeline)

// WithResolver attaches a catalog resolver; decoded documents are then
// annotated with resolved identifiers
func WithResolver(r *match.Resolver) PipelineOption {
	return func(p *Pipeline) { p.resolver = r }
}

// WithTemplates attaches the PDF template engine
func WithTemplates(e *pdftemplate.Engine) PipelineOption {
	return func(p *Pipeline) { p.templates = e }
}

// WithTextExtractor overrides the PDF text extraction backend
func WithTextExtractor(t pdftemplate.TextExtractor) PipelineOption {
	return func(p *Pipeline) { p.texts = t }
}

// WithLLMExtractor attaches the model-based fallback; nil disables it
func WithLLMExtractor(e *llm.Extractor) PipelineOption {
	return func(p *Pipeline) { p.llm = e }
}

// NewPipeline creates a pipeline with the given options
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{texts: pdftemplate.DefaultChain()}
	for _, opt := range opts {
		opt(p)
	}
	// templates resolve their search_field rules against the same catalog
	// the resolver matches with
	if p.templates != nil && p.templates.Catalog == nil && p.resolver != nil {
		p.templates.Catalog = p.resolver.Catalog
	}
	return p
}

// Process detects the payload format and routes it to the right backend
func (p *Pipeline) Process(ctx context.Context, data []byte) *Result {
	switch DetectFormat(data) {
	case FormatXML:
		return p.ProcessXML(ctx, data)
	case FormatEDIFACT:
		return p.ProcessEDIFACT(ctx, data)
	case FormatPDF:
		return p.ProcessPDF(ctx, data)
	case FormatImage:
		return p.ProcessImage(ctx, data, DetectMimeType(data))
	}
	return &Result{Error: model.NewParseError("processor", "format", "unsupported file format", nil)}
}

// ProcessXML decodes a UBL payload
func (p *Pipeline) ProcessXML(ctx context.Context, data []byte) *Result {
	doc, err := ubl.Decode(data)
	if err != nil {
		return &Result{Error: err}
	}
	return p.finish(doc, MethodUBL, confidenceStructured)
}

// ProcessEDIFACT decodes an EDIFACT interchange
func (p *Pipeline) ProcessEDIFACT(ctx context.Context, data []byte) *Result {
	doc, err := edifact.Decode(data)
	if err != nil {
		return &Result{Error: err}
	}
	return p.finish(doc, MethodEDIFACT, confidenceStructured)
}

// ProcessPDF runs the PDF cascade: embedded XML, then text templates,
// then the LLM fallback
func (p *Pipeline) ProcessPDF(ctx context.Context, data []byte) *Result {
	if payload, name, err := pdfxml.ExtractXML(data); err == nil {
		doc, err := ubl.Decode(payload)
		if err == nil {
			logging.WithField("attachment", name).Info("decoded embedded XML")
			return p.finish(doc, MethodEmbeddedXML, confidenceEmbedded)
		}
		logging.WithField("error", err.Error()).Debug("embedded XML did not decode, falling back to text")
	}

	text, err := p.texts.Extract(ctx, data)
	if err != nil {
		return &Result{Error: err}
	}
	return p.ProcessText(ctx, text.All)
}

// ProcessText runs template extraction over pre-extracted document text,
// with the LLM as last resort
func (p *Pipeline) ProcessText(ctx context.Context, text string) *Result {
	if p.templates != nil {
		res, err := p.templates.Extract(text)
		if err == nil {
			return p.finish(res.ToDocument(), MethodTemplate, confidenceTemplate)
		}
		if _, ok := err.(*model.TemplateExtractionError); ok {
			// a matched template that misses required fields is final:
			// guessing past it would hide a broken template
			return &Result{Error: err}
		}
		logging.WithField("error", err.Error()).Debug("no template matched")
	}

	if p.llm == nil {
		return &Result{Error: &model.ExtractionError{Method: "processor", Message: "no extraction backend succeeded"}}
	}
	doc, err := p.llm.ExtractText(ctx, text)
	if err != nil {
		return &Result{Error: err}
	}
	return p.finish(doc, MethodLLM, confidenceLLM)
}

// ProcessImage sends a scanned page to the vision fallback
func (p *Pipeline) ProcessImage(ctx context.Context, data []byte, mimeType string) *Result {
	if p.llm == nil {
		return &Result{Error: &model.ExtractionError{Method: "processor", Message: "image input requires the LLM backend"}}
	}
	doc, err := p.llm.ExtractImage(ctx, data, mimeType)
	if err != nil {
		return &Result{Error: err}
	}
	return p.finish(doc, MethodLLM, confidenceLLM)
}

// finish runs catalog resolution and packages the result
func (p *Pipeline) finish(doc *model.Document, method Method, confidence float64) *Result {
	if p.resolver != nil {
		if err := p.resolver.ResolveAll(doc); err != nil {
			return &Result{Document: doc, Method: method, Error: err, Warnings: doc.Messages}
		}
	}
	return &Result{
		Document:   doc,
		Method:     method,
		Confidence: confidence,
		Warnings:   doc.Messages,
	}
}
