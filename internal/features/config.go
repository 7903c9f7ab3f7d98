package features

import (
	"errors"
	"fmt"
)

const (
	DefaultSampleRate   = 16000
	DefaultFrameSize    = 1024
	DefaultHop          = 512
	DefaultCoefficients = 13
	DefaultMelBins      = 40

	// NormalizationZScore is the only normalization the featurizer applies.
	NormalizationZScore = "zscore"
)

var ErrInvalidConfig = errors.New("invalid feature config")

// Config describes how a signal is cut into frames and summarised.
// SampleRate is informational for the extractor and is overwritten with the
// signal's rate during featurization.
type Config struct {
	SampleRate   int
	FrameSize    int
	Hop          int
	Coefficients int
	MelBins      int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:   DefaultSampleRate,
		FrameSize:    DefaultFrameSize,
		Hop:          DefaultHop,
		Coefficients: DefaultCoefficients,
		MelBins:      DefaultMelBins,
	}
}

func (c Config) Validate() error {
	switch {
	case c.FrameSize <= 0:
		return fmt.Errorf("%w: frame size must be positive, got %d", ErrInvalidConfig, c.FrameSize)
	case c.Hop <= 0:
		return fmt.Errorf("%w: hop must be positive, got %d", ErrInvalidConfig, c.Hop)
	case c.Hop > c.FrameSize:
		return fmt.Errorf("%w: hop %d exceeds frame size %d", ErrInvalidConfig, c.Hop, c.FrameSize)
	case c.Coefficients <= 0:
		return fmt.Errorf("%w: coefficient count must be positive, got %d", ErrInvalidConfig, c.Coefficients)
	case c.MelBins <= 0:
		return fmt.Errorf("%w: mel bins must be positive, got %d", ErrInvalidConfig, c.MelBins)
	case c.Coefficients > c.MelBins:
		return fmt.Errorf("%w: %d coefficients exceed %d mel bins", ErrInvalidConfig, c.Coefficients, c.MelBins)
	}
	return nil
}

// FeatureType is the label stored with patterns, e.g. "mfcc13".
func (c Config) FeatureType() string {
	return fmt.Sprintf("mfcc%d", c.Coefficients)
}

// FrameCount returns floor((n-frame)/hop)+1, or 0 when the signal is
// shorter than one frame.
func (c Config) FrameCount(n int) int {
	if c.FrameSize <= 0 || c.Hop <= 0 || n < c.FrameSize {
		return 0
	}
	return (n-c.FrameSize)/c.Hop + 1
}
