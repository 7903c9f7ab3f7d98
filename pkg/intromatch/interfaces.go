package intromatch

import (
	"context"

	"github.com/himanishpuri/IntroMatch/internal/media"
	"github.com/himanishpuri/IntroMatch/pkg/models"
)

type Service interface {
	CreatePattern(ctx context.Context, src media.Source, req PatternRequest) (*models.Pattern, error)
	Analyze(ctx context.Context, patternID string, item Item) (*models.Analysis, error)
	AnalyzeBatch(ctx context.Context, patternID string, items []Item, progress ProgressFunc) ([]models.Analysis, error)
	FetchItem(ctx context.Context, url string) (Item, error)
	ExportPattern(patternID string) ([]byte, string, error)
	ImportPattern(data []byte) (*models.Pattern, error)
	GetPattern(patternID string) (*models.Pattern, error)
	ListPatterns() ([]models.PatternSummary, error)
	DeletePattern(patternID string) error
	Close() error
}

type Storage interface {
	SavePattern(p *models.Pattern) error
	GetPattern(id string) (*models.Pattern, error)
	PatternExists(id string) (bool, error)
	ListPatterns() ([]models.Pattern, error)
	DeletePattern(id string) error
	Close() error
}

// Decoder yields mono 16-bit WAV bytes for a window of a media source.
type Decoder interface {
	DecodeSegment(ctx context.Context, src media.Source, startS, durationS float64) ([]byte, error)
	DecodeHead(ctx context.Context, src media.Source, headWindowS float64) ([]byte, error)
	Duration(ctx context.Context, src media.Source) (float64, error)
}

type Fetcher interface {
	FetchHead(ctx context.Context, url string) (media.Source, error)
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
