package pdftemplate

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/rezonia/docexchange/internal/logging"
	"github.com/rezonia/docexchange/internal/model"
)

// ExtractedText is the raw text pulled out of a PDF. FirstPage is kept
// separately because detection keywords usually live there
type ExtractedText struct {
	All       string
	FirstPage string
}

// TextExtractor turns PDF bytes into text. Implementations are tried in
// priority order; one backend failing must not prevent the next
type TextExtractor interface {
	Name() string
	Extract(ctx context.Context, data []byte) (ExtractedText, error)
}

// LibExtractor reads the PDF content streams in-process
type LibExtractor struct{}

// Name implements TextExtractor
func (LibExtractor) Name() string { return "pdflib" }

// Extract implements TextExtractor
func (LibExtractor) Extract(_ context.Context, data []byte) (ExtractedText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ExtractedText{}, &model.ExtractionError{Method: "pdflib", Message: "unreadable PDF", Cause: err}
	}

	var all strings.Builder
	var firstPage string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			return ExtractedText{}, &model.ExtractionError{Method: "pdflib", Message: "page extraction failed", Cause: err}
		}
		if i == 1 {
			firstPage = text
		}
		all.WriteString(text)
		all.WriteString("\n")
	}
	if strings.TrimSpace(all.String()) == "" {
		return ExtractedText{}, &model.ExtractionError{Method: "pdflib", Message: "document contains no extractable text"}
	}
	return ExtractedText{All: all.String(), FirstPage: firstPage}, nil
}

func pageText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, row := range rows {
		for i, word := range row.Content {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(word.S)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ToolExtractor shells out to the pdftotext command, which copes with
// layouts the in-process reader cannot
type ToolExtractor struct {
	// Command defaults to "pdftotext"
	Command string
}

// Name implements TextExtractor
func (t ToolExtractor) Name() string { return "pdftotext" }

// Extract implements TextExtractor
func (t ToolExtractor) Extract(ctx context.Context, data []byte) (ExtractedText, error) {
	command := t.Command
	if command == "" {
		command = "pdftotext"
	}
	tmp, err := os.CreateTemp("", "docexchange-*.pdf")
	if err != nil {
		return ExtractedText{}, &model.ExtractionError{Method: "pdftotext", Message: "temp file", Cause: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ExtractedText{}, &model.ExtractionError{Method: "pdftotext", Message: "temp file write", Cause: err}
	}
	tmp.Close()

	out, err := exec.CommandContext(ctx, command, "-layout", tmp.Name(), "-").Output()
	if err != nil {
		return ExtractedText{}, &model.ExtractionError{Method: "pdftotext", Message: "command failed", Cause: err}
	}
	all := string(out)
	firstPage := all
	// pdftotext separates pages with a form feed
	if i := strings.IndexByte(all, '\f'); i >= 0 {
		firstPage = all[:i]
	}
	return ExtractedText{All: all, FirstPage: firstPage}, nil
}

// Chain tries extractors in order and returns the first success. Only
// the exhaustion of every backend is fatal
type Chain struct {
	Extractors []TextExtractor
}

// DefaultChain is the standard backend order: in-process library first,
// command-line tool second
func DefaultChain() *Chain {
	return &Chain{Extractors: []TextExtractor{LibExtractor{}, ToolExtractor{}}}
}

// Name implements TextExtractor
func (c *Chain) Name() string { return "chain" }

// Extract implements TextExtractor
func (c *Chain) Extract(ctx context.Context, data []byte) (ExtractedText, error) {
	var lastErr error
	for _, ex := range c.Extractors {
		text, err := ex.Extract(ctx, data)
		if err == nil {
			return text, nil
		}
		logging.WithField("backend", ex.Name()).WithField("error", err.Error()).
			Debug("text extraction backend failed, trying next")
		lastErr = err
	}
	return ExtractedText{}, &model.ExtractionError{
		Method:  "chain",
		Message: "every text extraction backend failed",
		Cause:   lastErr,
	}
}
