// Package server exposes the import pipeline and the codecs over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/docexchange/internal/edifact"
	"github.com/rezonia/docexchange/internal/llm"
	"github.com/rezonia/docexchange/internal/logging"
	"github.com/rezonia/docexchange/internal/match"
	"github.com/rezonia/docexchange/internal/model"
	"github.com/rezonia/docexchange/internal/pdftemplate"
	"github.com/rezonia/docexchange/internal/processor"
	"github.com/rezonia/docexchange/internal/ubl"
)

// Config holds server configuration
type Config struct {
	Address      string
	APIKey       string
	LLMBaseURL   string
	LLMModel     string
	TemplateDir  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server
type Server struct {
	config   *Config
	router   *gin.Engine
	pipeline *processor.Pipeline
}

// NewServer creates a new API server. catalog may be nil, in which case
// imported documents are returned unresolved
func NewServer(config *Config, catalog match.Catalog) (*Server, error) {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	var opts []processor.PipelineOption
	if catalog != nil {
		opts = append(opts, processor.WithResolver(match.NewResolver(catalog)))
	}
	if config.TemplateDir != "" {
		templates, err := pdftemplate.LoadDir(config.TemplateDir)
		if err != nil {
			return nil, err
		}
		logging.WithField("count", len(templates)).Info("loaded PDF templates")
		opts = append(opts, processor.WithTemplates(pdftemplate.NewEngine(templates...)))
	}
	if config.APIKey != "" {
		var clientOpts []llm.ClientOption
		if config.LLMBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(config.LLMBaseURL))
		}
		client := llm.NewClient(config.APIKey, clientOpts...)
		opts = append(opts, processor.WithLLMExtractor(llm.NewExtractor(client, config.LLMModel)))
	}

	s := &Server{
		config:   config,
		router:   router,
		pipeline: processor.NewPipeline(opts...),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/import", s.handleImport)
		v1.POST("/import/xml", s.handleImportXML)
		v1.POST("/import/edifact", s.handleImportEDIFACT)
		v1.POST("/import/pdf", s.handleImportPDF)

		v1.POST("/export/ubl", s.handleExportUBL)
		v1.POST("/export/edifact", s.handleExportEDIFACT)

		v1.POST("/validate", s.handleValidate)
		v1.POST("/info", s.handleInfo)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) body(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return nil, false
	}
	return body, true
}

func (s *Server) respond(c *gin.Context, result *processor.Result) {
	if result.Error != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:    result.Error.Error(),
			Warnings: result.Warnings,
		})
		return
	}
	c.JSON(http.StatusOK, ImportResponse{
		Document:   result.Document,
		Method:     string(result.Method),
		Confidence: result.Confidence,
		Warnings:   result.Warnings,
	})
}

func (s *Server) handleImport(c *gin.Context) {
	body, ok := s.body(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()
	s.respond(c, s.pipeline.Process(ctx, body))
}

func (s *Server) handleImportXML(c *gin.Context) {
	body, ok := s.body(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	s.respond(c, s.pipeline.ProcessXML(ctx, body))
}

func (s *Server) handleImportEDIFACT(c *gin.Context) {
	body, ok := s.body(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	s.respond(c, s.pipeline.ProcessEDIFACT(ctx, body))
}

func (s *Server) handleImportPDF(c *gin.Context) {
	body, ok := s.body(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()
	s.respond(c, s.pipeline.ProcessPDF(ctx, body))
}

func (s *Server) handleExportUBL(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Document == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request must carry a document"})
		return
	}

	enc := ubl.NewEncoder()
	enc.Peppol = c.Query("peppol") == "1" || c.Query("peppol") == "true"
	payload, err := enc.Encode(req.Document)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/xml", payload)
}

func (s *Server) handleExportEDIFACT(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Document == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request must carry a document"})
		return
	}

	payload, err := edifact.NewEncoder().Encode(req.Document)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/plain", payload)
}

func (s *Server) handleValidate(c *gin.Context) {
	body, ok := s.body(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	var result *processor.Result
	switch processor.DetectFormat(body) {
	case processor.FormatXML:
		result = s.pipeline.ProcessXML(ctx, body)
	case processor.FormatEDIFACT:
		result = s.pipeline.ProcessEDIFACT(ctx, body)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "only XML and EDIFACT validation is supported"})
		return
	}

	if result.Error != nil {
		c.JSON(http.StatusUnprocessableEntity, ValidationResponse{
			Valid:  false,
			Errors: []string{result.Error.Error()},
		})
		return
	}

	errs, warnings := validateDocument(result.Document)
	warnings = append(warnings, result.Warnings...)
	c.JSON(http.StatusOK, ValidationResponse{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	})
}

func (s *Server) handleInfo(c *gin.Context) {
	body, ok := s.body(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, InfoResponse{
		Format:   string(processor.DetectFormat(body)),
		MimeType: processor.DetectMimeType(body),
		Size:     len(body),
	})
}

func validateDocument(doc *model.Document) ([]string, []string) {
	var errs, warnings []string

	if doc.Reference == "" {
		errs = append(errs, "missing document reference")
	}
	if doc.IssueDate.IsZero() {
		warnings = append(warnings, "missing issue date")
	}
	if doc.Partner.Empty() {
		errs = append(errs, "missing counter-party")
	}
	if doc.AmountTotal.IsZero() && doc.Kind != model.KindOrder {
		warnings = append(warnings, "total amount is zero or missing")
	}
	if !doc.AmountUntaxed.IsZero() && !doc.AmountTax.IsZero() && !doc.AmountTotal.IsZero() {
		if !doc.AmountUntaxed.Add(doc.AmountTax).Equal(doc.AmountTotal) {
			warnings = append(warnings, "amount calculation mismatch")
		}
	}
	return errs, warnings
}
