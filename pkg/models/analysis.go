package models

// MediaMeta is the per-file metadata a batch list can supply.
type MediaMeta struct {
	CMSID      string   `json:"cms_id,omitempty"`
	ExternalID string   `json:"external_cms_id,omitempty"`
	URL        string   `json:"url,omitempty"`
	DurationS  *float64 `json:"duration_s,omitempty"`
}

// Analysis is one analysed media file. Optional values are nil when unknown.
type Analysis struct {
	Source      string    `json:"source"`
	Meta        MediaMeta `json:"meta"`
	PatternID   string    `json:"pattern_id"`
	PatternName string    `json:"pattern_name"`
	DurationS   *float64  `json:"duration_s"`

	Matched            bool     `json:"matched"`
	BestOffset         int      `json:"best_offset"`
	IntroStartS        *float64 `json:"intro_start_s"`
	OutroStartS        *float64 `json:"outro_start_s"`
	Confidence         float64  `json:"confidence"`
	Score              *float64 `json:"score"`
	SecondBestDistance *float64 `json:"second_best_distance"`

	Error string `json:"error,omitempty"`
}

// Failed reports whether the analysis stopped with an error.
func (a *Analysis) Failed() bool {
	return a.Error != ""
}
