package models

import "time"

// AlgoVersion is stamped on every pattern this module creates.
const AlgoVersion = "intro-match/1.0.0"

// Pattern is a stored reference fingerprint of one intro.
type Pattern struct {
	ID            string          `json:"pattern_id"`
	Name          string          `json:"name"`
	CreatedAt     time.Time       `json:"created_at"`
	ImportedAt    *time.Time      `json:"imported_at,omitempty"`
	AlgoVersion   string          `json:"algo_version"`
	Timing        ReferenceTiming `json:"reference_timing"`
	FeatureConfig FeatureConfig   `json:"feature_config"`
	Payload       FeaturePayload  `json:"feature_payload"`
}

// ReferenceTiming is where the intro sat in the reference media.
// OutroDurationS is the distance from the outro start to the end of a file.
type ReferenceTiming struct {
	IntroStartS    float64  `json:"intro_start_s"`
	IntroEndS      float64  `json:"intro_end_s"`
	IntroDurationS float64  `json:"intro_duration_s"`
	OutroDurationS *float64 `json:"outro_duration_s"`
}

// FeatureConfig is the featurization snapshot targets must be processed with.
type FeatureConfig struct {
	FeatureType   string `json:"feature_type"`
	SampleRate    int    `json:"sr_hz"`
	Win           int    `json:"win"`
	Hop           int    `json:"hop"`
	MelBins       int    `json:"mel_bins"`
	Normalization string `json:"normalization"`
}

// FeaturePayload carries the encoded feature matrix.
type FeaturePayload struct {
	Format     string `json:"format"`
	FrameCount int    `json:"frame_count"`
	Dims       int    `json:"dims"`
	DataB64    string `json:"data_b64"`
	Checksum   string `json:"checksum,omitempty"`
}

// PatternSummary is the listing view of a pattern.
type PatternSummary struct {
	ID             string    `json:"pattern_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	IntroDurationS float64   `json:"intro_duration_s"`
	OutroDurationS *float64  `json:"outro_duration_s"`
	FrameCount     int       `json:"frame_count"`
}

func (p *Pattern) Summary() PatternSummary {
	return PatternSummary{
		ID:             p.ID,
		Name:           p.Name,
		CreatedAt:      p.CreatedAt,
		IntroDurationS: p.Timing.IntroDurationS,
		OutroDurationS: p.Timing.OutroDurationS,
		FrameCount:     p.Payload.FrameCount,
	}
}
