// Package export renders analysis results and patterns into the files
// operators hand on to the CMS.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/himanishpuri/IntroMatch/internal/batch"
	"github.com/himanishpuri/IntroMatch/pkg/models"
)

var csvHeader = []string{
	"cms_id",
	"external_cms_id",
	"video_url",
	"duration_hhmmss",
	"outro_start_mmss",
	"matched_pattern",
	"intro_start_mmss",
	"match",
}

// CSVRecord is the cell values for one analysis, in header order.
func CSVRecord(a *models.Analysis) []string {
	url := a.Meta.URL
	if url == "" {
		url = a.Source
	}
	var duration, outro, intro, match string
	if a.DurationS != nil {
		duration = batch.FormatHHMMSS(math.Round(*a.DurationS))
	}
	if a.OutroStartS != nil {
		outro = batch.FormatMMSS(*a.OutroStartS)
	}
	if a.IntroStartS != nil {
		intro = batch.FormatMMSS(*a.IntroStartS)
	}
	if a.Matched && a.Score != nil {
		match = fmt.Sprintf("%.2f / %.4f", a.Confidence, *a.Score)
	}
	return []string{
		a.Meta.CMSID,
		a.Meta.ExternalID,
		url,
		duration,
		outro,
		a.PatternName,
		intro,
		match,
	}
}

// WriteCSV writes a header line and one quoted record per row. Failed rows
// are skipped.
func WriteCSV(w io.Writer, rows []models.Analysis) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(csvHeader, ","))

	for i := range rows {
		if rows[i].Failed() {
			continue
		}
		bw.WriteByte('\n')
		for j, cell := range CSVRecord(&rows[i]) {
			if j > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(quoteCell(cell))
		}
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

func quoteCell(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
