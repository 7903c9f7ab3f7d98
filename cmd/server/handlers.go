//go:build !js && !wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/himanishpuri/IntroMatch/internal/audio"
	"github.com/himanishpuri/IntroMatch/internal/batch"
	"github.com/himanishpuri/IntroMatch/internal/export"
	"github.com/himanishpuri/IntroMatch/internal/features"
	"github.com/himanishpuri/IntroMatch/internal/media"
	"github.com/himanishpuri/IntroMatch/pkg/intromatch"
	"github.com/himanishpuri/IntroMatch/pkg/logger"
	"github.com/himanishpuri/IntroMatch/pkg/models"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service intromatch.Service
	config  *ServerConfig
	log     intromatch.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	StoreBackend   string
	Decoder        string
	HeadWindowS    float64
	AllowedOrigins []string

	// MaxBodyBytes caps any request body. Zero means MaxUploadBytes plus
	// room for the multipart envelope.
	MaxBodyBytes int64
}

// NewServer creates a new server instance
func NewServer(service intromatch.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().Named("server"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// limitBody caps r.Body so form parsing cannot spool an unbounded upload.
func (s *Server) limitBody(w http.ResponseWriter, r *http.Request) {
	limit := s.config.MaxBodyBytes
	if limit <= 0 {
		limit = MaxUploadBytes + formOverheadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
}

// parseForm limits and parses a multipart body, answering 413 when the body
// is over the cap and 400 for any other parse failure.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	s.limitBody(w, r)
	err := r.ParseMultipartForm(32 << 20)
	if err == nil {
		return true
	}
	if tooLarge(err) {
		s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
		return false
	}
	s.log.Errorf("Failed to parse form: %v", err)
	s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
	return false
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// respondFile writes an attachment download
func (s *Server) respondFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Errorf("Failed to write %s: %v", filename, err)
	}
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, intromatch.ErrPatternNotFound):
		return http.StatusNotFound
	case errors.Is(err, intromatch.ErrInvalidTiming),
		errors.Is(err, intromatch.ErrPatternTooShort),
		errors.Is(err, intromatch.ErrInvalidPattern),
		errors.Is(err, intromatch.ErrNoSource),
		errors.Is(err, media.ErrUnsupportedContainer),
		errors.Is(err, media.ErrEmptySource),
		errors.Is(err, features.ErrInvalidConfig),
		audio.IsFormatError(err),
		audio.IsUnsupportedFormat(err):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, media.ErrFetchStatus):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "IntroMatch API",
		"version": models.AlgoVersion,
		"endpoints": map[string]string{
			"health":        "GET /health",
			"metrics":       "GET /api/health/metrics",
			"patterns":      "GET /api/patterns",
			"createPattern": "POST /api/patterns",
			"importPattern": "POST /api/patterns/import",
			"getPattern":    "GET /api/patterns/{id}",
			"deletePattern": "DELETE /api/patterns/{id}",
			"exportPattern": "GET /api/patterns/{id}/export",
			"analyze":       "POST /api/analyze",
			"analyzeBatch":  "POST /api/analyze/batch?format=json|csv|xml",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.service.ListPatterns()
	if err != nil {
		s.log.Errorf("Failed to count patterns: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		Store:        s.config.StoreBackend,
		DatabasePath: s.config.DBPath,
		PatternCount: len(patterns),
		HeadWindowS:  s.config.HeadWindowS,
	})
}

// handleListPatterns handles GET /api/patterns
func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.service.ListPatterns()
	if err != nil {
		s.log.Errorf("Failed to list patterns: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve patterns")
		return
	}
	s.respondJSON(w, http.StatusOK, ListPatternsResponse{
		Patterns: patterns,
		Count:    len(patterns),
	})
}

// readUpload reads a multipart file field into a media source.
func readUpload(r *http.Request, field string) (media.Source, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return media.Source{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		return media.Source{}, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return media.Source{}, fmt.Errorf("upload exceeds %d bytes", MaxUploadBytes)
	}
	return media.Source{Name: header.Filename, Data: data}, nil
}

// formTime parses an optional time field in seconds, m:ss or h:mm:ss.
func formTime(r *http.Request, field string, required bool) (*float64, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		if required {
			return nil, fmt.Errorf("%s is required", field)
		}
		return nil, nil
	}
	v, ok := batch.ParseTime(raw)
	if !ok {
		return nil, fmt.Errorf("%s: cannot parse %q", field, raw)
	}
	return &v, nil
}

// handleCreatePattern handles POST /api/patterns (multipart media upload)
func (s *Server) handleCreatePattern(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if !s.parseForm(w, r) {
		return
	}

	src, err := readUpload(r, "media")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "media file is required")
		return
	}

	start, err := formTime(r, "intro_start", true)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := formTime(r, "intro_end", true)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	outro, err := formTime(r, "outro_duration", false)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.service.CreatePattern(ctx, src, intromatch.PatternRequest{
		Name:           r.FormValue("name"),
		IntroStartS:    *start,
		IntroEndS:      *end,
		OutroDurationS: outro,
	})
	if err != nil {
		s.log.Errorf("Failed to create pattern: %v", err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to create pattern: %v", err))
		return
	}
	s.respondJSON(w, http.StatusCreated, p.Summary())
}

// handleImportPattern handles POST /api/patterns/import
func (s *Server) handleImportPattern(w http.ResponseWriter, r *http.Request) {
	var data []byte
	var err error
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		if !s.parseForm(w, r) {
			return
		}
		var src media.Source
		src, err = readUpload(r, "pattern")
		data = src.Data
	} else {
		s.limitBody(w, r)
		data, err = io.ReadAll(r.Body)
		if tooLarge(err) {
			s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
	}
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		s.respondError(w, http.StatusBadRequest, "pattern document is required")
		return
	}

	p, err := s.service.ImportPattern(data)
	if err != nil {
		s.log.Warnf("Pattern import rejected: %v", err)
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, p.Summary())
}

// handleGetPattern handles GET /api/patterns/{id}
func (s *Server) handleGetPattern(w http.ResponseWriter, r *http.Request, id string) {
	p, err := s.service.GetPattern(id)
	if err != nil {
		s.respondError(w, statusFor(err), fmt.Sprintf("Pattern %s: %v", id, err))
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

// handleDeletePattern handles DELETE /api/patterns/{id}
func (s *Server) handleDeletePattern(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeletePattern(id); err != nil {
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to delete pattern %s: %v", id, err))
		return
	}
	s.respondJSON(w, http.StatusOK, DeletePatternResponse{
		Message: "Pattern deleted successfully",
		ID:      id,
	})
}

// handleExportPattern handles GET /api/patterns/{id}/export
func (s *Server) handleExportPattern(w http.ResponseWriter, r *http.Request, id string) {
	data, filename, err := s.service.ExportPattern(id)
	if err != nil {
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to export pattern %s: %v", id, err))
		return
	}
	s.respondFile(w, "application/json", filename, data)
}

// handleAnalyze handles POST /api/analyze (multipart upload or url field)
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if !s.parseForm(w, r) {
		return
	}
	patternID := r.FormValue("pattern_id")
	if patternID == "" {
		s.respondError(w, http.StatusBadRequest, "pattern_id is required")
		return
	}

	item := intromatch.Item{
		URL: strings.TrimSpace(r.FormValue("url")),
		Meta: models.MediaMeta{
			CMSID:      r.FormValue("cms_id"),
			ExternalID: r.FormValue("external_cms_id"),
		},
	}
	duration, err := formTime(r, "duration", false)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item.Meta.DurationS = duration

	if src, err := readUpload(r, "media"); err == nil {
		item.Source = src
	} else if item.URL == "" {
		s.respondError(w, http.StatusBadRequest, "media file or url is required")
		return
	}

	row, err := s.service.Analyze(ctx, patternID, item)
	if err != nil {
		s.log.Errorf("Failed to analyze %s: %v", item.Name(), err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to analyze: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, row)
}

// handleAnalyzeBatch handles POST /api/analyze/batch
func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Minute)
	defer cancel()

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" && format != "xml" {
		s.respondError(w, http.StatusBadRequest, "format must be json, csv or xml")
		return
	}

	s.limitBody(w, r)
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if tooLarge(err) {
			s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	pattern, err := s.service.GetPattern(req.PatternID)
	if err != nil {
		s.respondError(w, statusFor(err), fmt.Sprintf("Pattern %s: %v", req.PatternID, err))
		return
	}

	list, err := batch.ParseString(req.List)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var items []intromatch.Item
	for _, it := range list.Items() {
		items = append(items, intromatch.Item{URL: it.URL, Meta: it.Meta})
	}
	for _, u := range req.URLs {
		items = append(items, intromatch.Item{URL: u, Meta: models.MediaMeta{URL: u}})
	}
	if len(items) > MaxBatchItems {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("too many items: %d (maximum: %d)", len(items), MaxBatchItems))
		return
	}

	s.log.Infof("Batch of %d items against %q", len(items), pattern.Name)
	rows, err := s.service.AnalyzeBatch(ctx, pattern.ID, items, nil)
	if err != nil && len(rows) == 0 {
		s.respondError(w, statusFor(err), fmt.Sprintf("Batch failed: %v", err))
		return
	}
	if err != nil {
		s.log.Warnf("Batch stopped after %d of %d items: %v", len(rows), len(items), err)
	}

	var buf bytes.Buffer
	switch format {
	case "csv":
		if err := export.WriteCSV(&buf, rows); err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondFile(w, "text/csv; charset=utf-8", export.UpdateFileName(pattern.Name, "csv", time.Now()), buf.Bytes())
	case "xml":
		timings := map[string]models.ReferenceTiming{pattern.Name: pattern.Timing}
		if err := export.WriteXML(&buf, rows, timings); err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondFile(w, "application/xml", export.UpdateFileName(pattern.Name, "xml", time.Now()), buf.Bytes())
	default:
		resp := BatchResponse{PatternID: pattern.ID, Rows: rows, Count: len(rows)}
		for i := range rows {
			if rows[i].Failed() {
				resp.Failed++
			} else if rows[i].Matched {
				resp.Matched++
			}
		}
		s.respondJSON(w, http.StatusOK, resp)
	}
}

// handlePatterns routes requests to /api/patterns
func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListPatterns(w, r)
	case http.MethodPost:
		s.handleCreatePattern(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handlePattern routes requests to /api/patterns/{id} and /api/patterns/{id}/export
func (s *Server) handlePattern(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/patterns/"), "/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "Pattern ID required")
		return
	}

	switch {
	case sub == "export" && r.Method == http.MethodGet:
		s.handleExportPattern(w, r, id)
	case sub != "":
		http.NotFound(w, r)
	case r.Method == http.MethodGet:
		s.handleGetPattern(w, r, id)
	case r.Method == http.MethodDelete:
		s.handleDeletePattern(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleImportRoute routes requests to /api/patterns/import
func (s *Server) handleImportRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleImportPattern(w, r)
}

// handleAnalyzeRoute routes requests to /api/analyze
func (s *Server) handleAnalyzeRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleAnalyze(w, r)
}

// handleBatchRoute routes requests to /api/analyze/batch
func (s *Server) handleBatchRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleAnalyzeBatch(w, r)
}
