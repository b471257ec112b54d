// Package pdfxml reads and writes invoice XML embedded in PDF files as
// attachments, the hybrid form used by Factur-X, ZUGFeRD and Order-X.
package pdfxml

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/rezonia/docexchange/internal/logging"
	"github.com/rezonia/docexchange/internal/model"
)

// ErrNoEmbeddedXML reports a well-formed PDF that carries no recognizable
// XML attachment
var ErrNoEmbeddedXML = errors.New("no embedded invoice XML found")

// preferredNames are the standard attachment names of the hybrid PDF
// profiles, in preference order. Any other *.xml attachment is a last
// resort
var preferredNames = []string{
	"factur-x.xml",
	"zugferd-invoice.xml",
	"xrechnung.xml",
	"order-x.xml",
}

// ExtractXML returns the embedded invoice XML and its attachment name
func ExtractXML(data []byte) ([]byte, string, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	atts, err := api.ExtractAttachmentsRaw(bytes.NewReader(data), "", nil, conf)
	if err != nil {
		return nil, "", &model.ExtractionError{Method: "pdfxml", Message: "attachment extraction failed", Cause: err}
	}
	att := selectAttachment(atts)
	if att == nil {
		return nil, "", ErrNoEmbeddedXML
	}
	payload, err := io.ReadAll(att)
	if err != nil {
		return nil, "", &model.ExtractionError{Method: "pdfxml", Message: "attachment read failed", Cause: err}
	}
	logging.WithField("attachment", att.FileName).Debug("found embedded XML")
	return payload, att.FileName, nil
}

// selectAttachment picks the attachment to decode: standard profile names
// first, then any other XML file
func selectAttachment(atts []pdfmodel.Attachment) *pdfmodel.Attachment {
	for _, name := range preferredNames {
		for i := range atts {
			if strings.EqualFold(atts[i].FileName, name) {
				return &atts[i]
			}
		}
	}
	for i := range atts {
		if strings.EqualFold(filepath.Ext(atts[i].FileName), ".xml") {
			return &atts[i]
		}
	}
	return nil
}

// EmbedXML attaches the given XML to a PDF under name and returns the new
// PDF bytes. An empty name defaults to the Factur-X convention
func EmbedXML(pdfData, xmlData []byte, name string) ([]byte, error) {
	if name == "" {
		name = preferredNames[0]
	}
	dir, err := os.MkdirTemp("", "docexchange-embed-")
	if err != nil {
		return nil, &model.ExtractionError{Method: "pdfxml", Message: "temp dir", Cause: err}
	}
	defer os.RemoveAll(dir)

	// pdfcpu takes attachments as file paths, so the payload goes through
	// the filesystem under its final attachment name
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, xmlData, 0o600); err != nil {
		return nil, &model.ExtractionError{Method: "pdfxml", Message: "temp file write", Cause: err}
	}

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	var out bytes.Buffer
	if err := api.AddAttachments(bytes.NewReader(pdfData), &out, []string{path}, false, conf); err != nil {
		return nil, &model.ExtractionError{Method: "pdfxml", Message: "attachment embed failed", Cause: err}
	}
	return out.Bytes(), nil
}
