package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TargetSampleRate is the rate every decoder resamples to.
const TargetSampleRate = 16000

var (
	ErrEmptySource          = errors.New("media source is empty")
	ErrUnsupportedContainer = errors.New("unsupported media container")
)

// Source is a media file held in memory.
type Source struct {
	Name string
	Data []byte
}

// LoadFile reads path into a Source named after its base name.
func LoadFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Source{Name: filepath.Base(path), Data: data}, nil
}

// Ext returns the lower-cased extension of the source name, with the dot.
func (s Source) Ext() string {
	ext := filepath.Ext(s.Name)
	if ext == "" {
		return ".bin"
	}
	return ext
}

// Decoder turns media into mono 16-bit WAV bytes at TargetSampleRate.
type Decoder interface {
	DecodeSegment(ctx context.Context, src Source, startS, durationS float64) ([]byte, error)
	DecodeHead(ctx context.Context, src Source, headWindowS float64) ([]byte, error)
	Duration(ctx context.Context, src Source) (float64, error)
}

func checkSource(src Source) error {
	if len(src.Data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptySource, src.Name)
	}
	return nil
}
