//go:build !js && !wasm

package main

import (
	"fmt"

	"github.com/himanishpuri/IntroMatch/pkg/models"
)

const (
	// MaxUploadBytes caps a single media upload.
	MaxUploadBytes = 512 << 20

	// formOverheadBytes is headroom for multipart boundaries and text fields.
	formOverheadBytes = 1 << 20

	// MaxBatchItems caps the URLs accepted in one batch request.
	MaxBatchItems = 500
)

// BatchRequest is the request body for POST /api/analyze/batch
type BatchRequest struct {
	PatternID string `json:"pattern_id"`

	// List is a pasted batch list: bare URLs or TAB/comma rows of
	// cms_id, external_cms_id, url, duration.
	List string `json:"list,omitempty"`

	// URLs are appended after the list entries.
	URLs []string `json:"urls,omitempty"`
}

// Validate checks if the request is valid
func (r *BatchRequest) Validate() error {
	if r.PatternID == "" {
		return fmt.Errorf("pattern_id is required")
	}
	if r.List == "" && len(r.URLs) == 0 {
		return fmt.Errorf("list or urls is required")
	}
	return nil
}

// BatchResponse is the JSON response for a batch run
type BatchResponse struct {
	PatternID string            `json:"pattern_id"`
	Rows      []models.Analysis `json:"rows"`
	Count     int               `json:"count"`
	Matched   int               `json:"matched"`
	Failed    int               `json:"failed"`
}

// ListPatternsResponse is the response for GET /api/patterns
type ListPatternsResponse struct {
	Patterns []models.PatternSummary `json:"patterns"`
	Count    int                     `json:"count"`
}

// DeletePatternResponse is the response for DELETE /api/patterns/{id}
type DeletePatternResponse struct {
	Message string `json:"message"`
	ID      string `json:"pattern_id"`
}

// MetricsResponse provides server health and store metrics
type MetricsResponse struct {
	Status       string  `json:"status"`
	Store        string  `json:"store"`
	DatabasePath string  `json:"database_path"`
	PatternCount int     `json:"pattern_count"`
	HeadWindowS  float64 `json:"head_window_s"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
