package intromatch

import (
	"github.com/himanishpuri/IntroMatch/internal/media"
	"github.com/himanishpuri/IntroMatch/pkg/models"
	"github.com/himanishpuri/IntroMatch/pkg/utils"
)

// PatternRequest describes the intro to cut from a reference file.
type PatternRequest struct {
	Name           string   // defaults to the title tag, then the file name
	IntroStartS    float64  // inclusive
	IntroEndS      float64  // exclusive
	OutroDurationS *float64 // distance from outro start to end of file, optional
}

// Item is one media file to analyse. When Source has no data, the head of
// URL is fetched first.
type Item struct {
	Source media.Source
	URL    string
	Meta   models.MediaMeta
}

// Name is how the item is reported: the source name, else the URL basename.
func (it Item) Name() string {
	if it.Source.Name != "" {
		return it.Source.Name
	}
	if it.URL != "" {
		return utils.BasenameFromURL(it.URL)
	}
	return it.Meta.CMSID
}

// ProgressFunc is called after every batch item with the finished row.
type ProgressFunc func(done, total int, row *models.Analysis)
