package server

import "github.com/rezonia/docexchange/internal/model"

// ImportResponse is the response for import endpoints
type ImportResponse struct {
	Document   *model.Document `json:"document"`
	Method     string          `json:"method"`
	Confidence float64         `json:"confidence"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// ExportRequest is the request body for export endpoints
type ExportRequest struct {
	Document *model.Document `json:"document"`
}

// ValidationResponse is the response for the validate endpoint
type ValidationResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// InfoResponse is the response for the info endpoint
type InfoResponse struct {
	Format   string `json:"format"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
