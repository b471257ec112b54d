package docexchange

import (
	"context"
	"io"

	"github.com/rezonia/docexchange/internal/edifact"
	"github.com/rezonia/docexchange/internal/llm"
	"github.com/rezonia/docexchange/internal/match"
	"github.com/rezonia/docexchange/internal/model"
	"github.com/rezonia/docexchange/internal/pdftemplate"
	"github.com/rezonia/docexchange/internal/processor"
	"github.com/rezonia/docexchange/internal/ubl"
)

// Options configures a Processor
type Options struct {
	// Catalog enables matching; decoded documents then carry resolved
	// identifiers. Nil disables matching
	Catalog Catalog
	// Strict turns catalog misses into errors instead of warnings
	Strict bool
	// TemplateDir holds YAML templates for PDF text extraction
	TemplateDir string
	// LLMAPIKey enables the model-based fallback for unmatched PDFs
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string
}

// Result is the outcome of processing one input
type Result struct {
	Document   *Document
	Method     string
	Confidence float64
	Warnings   []string
}

// Processor runs the import pipeline
type Processor struct {
	pipeline *processor.Pipeline
}

// NewProcessor creates a processor with the given options
func NewProcessor(opts Options) (*Processor, error) {
	var popts []processor.PipelineOption

	if opts.Catalog != nil {
		r := match.NewResolver(opts.Catalog)
		r.Strict = opts.Strict
		popts = append(popts, processor.WithResolver(r))
	}
	if opts.TemplateDir != "" {
		templates, err := pdftemplate.LoadDir(opts.TemplateDir)
		if err != nil {
			return nil, err
		}
		popts = append(popts, processor.WithTemplates(pdftemplate.NewEngine(templates...)))
	}
	if opts.LLMAPIKey != "" {
		var clientOpts []llm.ClientOption
		if opts.LLMBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(opts.LLMBaseURL))
		}
		client := llm.NewClient(opts.LLMAPIKey, clientOpts...)
		popts = append(popts, processor.WithLLMExtractor(llm.NewExtractor(client, opts.LLMModel)))
	}

	return &Processor{pipeline: processor.NewPipeline(popts...)}, nil
}

// Process reads the input, detects its format and decodes it
func (p *Processor) Process(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError("docexchange", "input", "failed to read input", err)
	}
	return wrap(p.pipeline.Process(ctx, data))
}

// ProcessBytes decodes an in-memory payload
func (p *Processor) ProcessBytes(ctx context.Context, data []byte) (*Result, error) {
	return wrap(p.pipeline.Process(ctx, data))
}

// ProcessBatch decodes several inputs concurrently. The result slice is
// index-aligned with the inputs; the first error is returned after every
// input has finished
func (p *Processor) ProcessBatch(ctx context.Context, inputs []io.Reader) ([]*Result, error) {
	results := make([]*Result, len(inputs))
	errCh := make(chan error, len(inputs))

	for i, input := range inputs {
		go func(idx int, r io.Reader) {
			result, err := p.Process(ctx, r)
			if err != nil {
				errCh <- err
				return
			}
			results[idx] = result
			errCh <- nil
		}(i, input)
	}

	var firstErr error
	for range inputs {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

func wrap(res *processor.Result) (*Result, error) {
	if res.Error != nil {
		return nil, res.Error
	}
	return &Result{
		Document:   res.Document,
		Method:     string(res.Method),
		Confidence: res.Confidence,
		Warnings:   res.Warnings,
	}, nil
}

// DecodeUBL decodes a UBL 2.1 payload without running the pipeline
func DecodeUBL(data []byte) (*Document, error) {
	return ubl.Decode(data)
}

// DecodeEDIFACT decodes an EDIFACT interchange without running the
// pipeline
func DecodeEDIFACT(data []byte) (*Document, error) {
	return edifact.Decode(data)
}

// EncodeUBL encodes a document to UBL 2.1 XML. With peppol set the
// output carries the PEPPOL BIS 3.0 identifiers and restrictions
func EncodeUBL(doc *Document, peppol bool) ([]byte, error) {
	enc := ubl.NewEncoder()
	enc.Peppol = peppol
	return enc.Encode(doc)
}

// EncodeEDIFACT encodes a document to an EDIFACT interchange
func EncodeEDIFACT(doc *Document) ([]byte, error) {
	return edifact.NewEncoder().Encode(doc)
}
