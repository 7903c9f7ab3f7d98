package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/IntroMatch/pkg/models"
)

const (
	PatternDocType    = "intro-pattern"
	PatternDocVersion = "1.0.0"
)

var ErrInvalidDocument = errors.New("invalid pattern document")

// PatternDocument wraps a pattern for exchange between installations.
type PatternDocument struct {
	Type       string          `json:"_type"`
	Version    string          `json:"_version"`
	ExportedAt time.Time       `json:"exported_at"`
	Pattern    *models.Pattern `json:"pattern"`
}

// MarshalPattern renders p as an indented pattern document.
func MarshalPattern(p *models.Pattern, now time.Time) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil pattern", ErrInvalidDocument)
	}
	doc := PatternDocument{
		Type:       PatternDocType,
		Version:    PatternDocVersion,
		ExportedAt: now.UTC(),
		Pattern:    p,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// UnmarshalPattern accepts a pattern document or a bare pattern object.
func UnmarshalPattern(data []byte) (*models.Pattern, error) {
	var probe struct {
		Type    string          `json:"_type"`
		Pattern json.RawMessage `json:"pattern"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if probe.Type != "" && probe.Type != PatternDocType {
		return nil, fmt.Errorf("%w: unexpected _type %q", ErrInvalidDocument, probe.Type)
	}

	body := data
	if len(probe.Pattern) > 0 && string(probe.Pattern) != "null" {
		body = probe.Pattern
	}

	var p models.Pattern
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &p, nil
}
