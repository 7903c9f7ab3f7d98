package intromatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/himanishpuri/IntroMatch/internal/audio"
	"github.com/himanishpuri/IntroMatch/internal/export"
	"github.com/himanishpuri/IntroMatch/internal/features"
	"github.com/himanishpuri/IntroMatch/internal/matcher"
	"github.com/himanishpuri/IntroMatch/internal/media"
	"github.com/himanishpuri/IntroMatch/pkg/logger"
	"github.com/himanishpuri/IntroMatch/pkg/models"
	"github.com/himanishpuri/IntroMatch/pkg/utils"
)

// introService is the default implementation of the Service interface.
type introService struct {
	storage   Storage
	log       Logger
	config    *Config
	decoder   Decoder
	extractor features.Extractor
	fetcher   Fetcher
	now       func() time.Time
}

// loadedPattern is a stored pattern with its matrix decoded.
type loadedPattern struct {
	pattern *models.Pattern
	matrix  *features.Matrix
	cfg     features.Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Features.Validate(); err != nil {
		return nil, err
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().Named("intromatch")
	}

	if cfg.Decoder == nil {
		dec, err := media.NewDecoder(cfg.DecoderName, cfg.TempDir)
		if err != nil {
			return nil, err
		}
		cfg.Decoder = dec
	}
	if cfg.Extractor == nil {
		cfg.Extractor = features.NewMFCC()
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = media.NewFetcher()
	}

	// Create or use provided storage
	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = openStorage(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &introService{
		storage:   stor,
		log:       cfg.Logger,
		config:    cfg,
		decoder:   cfg.Decoder,
		extractor: cfg.Extractor,
		fetcher:   cfg.Fetcher,
		now:       time.Now,
	}, nil
}

func validTiming(req PatternRequest) error {
	switch {
	case math.IsNaN(req.IntroStartS) || math.IsNaN(req.IntroEndS):
		return fmt.Errorf("%w: start and end must be numbers", ErrInvalidTiming)
	case req.IntroStartS < 0:
		return fmt.Errorf("%w: start %.3f is negative", ErrInvalidTiming, req.IntroStartS)
	case req.IntroEndS <= req.IntroStartS:
		return fmt.Errorf("%w: end %.3f must be after start %.3f", ErrInvalidTiming, req.IntroEndS, req.IntroStartS)
	case req.OutroDurationS != nil && (*req.OutroDurationS < 0 || math.IsNaN(*req.OutroDurationS)):
		return fmt.Errorf("%w: outro duration must be non-negative", ErrInvalidTiming)
	}
	return nil
}

// CreatePattern cuts the intro out of src, featurizes it and stores it.
func (s *introService) CreatePattern(ctx context.Context, src media.Source, req PatternRequest) (*models.Pattern, error) {
	if err := validTiming(req); err != nil {
		return nil, err
	}
	s.log.Infof("Creating pattern from %s [%.2fs, %.2fs)", src.Name, req.IntroStartS, req.IntroEndS)

	// 1. Decode the reference segment to mono WAV
	wav, err := s.decoder.DecodeSegment(ctx, src, req.IntroStartS, req.IntroEndS-req.IntroStartS)
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}

	// 2. Read samples
	sig, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV data: %w", err)
	}

	// 3. Featurize
	m, fallbacks, err := features.Featurize(sig, s.config.Features, s.extractor)
	if err != nil {
		return nil, fmt.Errorf("featurization failed: %w", err)
	}
	if fallbacks > 0 {
		s.log.Warnf("%d of %d frames fell back to zero vectors", fallbacks, m.Frames)
	}
	if m.Empty() {
		return nil, fmt.Errorf("%w: %d samples at %d Hz", ErrPatternTooShort, len(sig.Samples), sig.SampleRate)
	}

	// 4. Build the pattern record
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = media.ReadTitle(src)
	}
	if name == "" {
		name = utils.StripExt(src.Name)
	}

	p := &models.Pattern{
		ID:          utils.GenerateUUID(),
		Name:        name,
		CreatedAt:   s.now().UTC(),
		AlgoVersion: models.AlgoVersion,
		Timing: models.ReferenceTiming{
			IntroStartS:    req.IntroStartS,
			IntroEndS:      req.IntroEndS,
			IntroDurationS: req.IntroEndS - req.IntroStartS,
			OutroDurationS: req.OutroDurationS,
		},
		FeatureConfig: featureSnapshot(s.config.Features, sig.SampleRate),
		Payload: models.FeaturePayload{
			Format:     features.PayloadFormat,
			FrameCount: m.Frames,
			Dims:       m.Dims,
			DataB64:    features.EncodePayload(m),
			Checksum:   features.Checksum(m),
		},
	}

	// 5. Store
	if err := s.storage.SavePattern(p); err != nil {
		return nil, fmt.Errorf("failed to store pattern: %w", err)
	}

	s.log.Infof("Stored pattern %q id=%s (%d frames x %d)", p.Name, utils.ShortID(p.ID), m.Frames, m.Dims)
	return p, nil
}

func featureSnapshot(cfg features.Config, sampleRate int) models.FeatureConfig {
	return models.FeatureConfig{
		FeatureType:   cfg.FeatureType(),
		SampleRate:    sampleRate,
		Win:           cfg.FrameSize,
		Hop:           cfg.Hop,
		MelBins:       cfg.MelBins,
		Normalization: features.NormalizationZScore,
	}
}

func configFromSnapshot(fc models.FeatureConfig, dims int) features.Config {
	cfg := features.Config{
		SampleRate:   fc.SampleRate,
		FrameSize:    fc.Win,
		Hop:          fc.Hop,
		Coefficients: dims,
		MelBins:      fc.MelBins,
	}
	if cfg.MelBins == 0 {
		cfg.MelBins = features.DefaultMelBins
	}
	return cfg
}

// decodePattern checks a pattern's payload and returns it ready to match.
func decodePattern(p *models.Pattern) (*loadedPattern, error) {
	if p.Payload.Format != "" && p.Payload.Format != features.PayloadFormat {
		return nil, fmt.Errorf("%w: payload format %q", ErrInvalidPattern, p.Payload.Format)
	}
	m, err := features.DecodePayload(p.Payload.DataB64, p.Payload.FrameCount, p.Payload.Dims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if err := features.VerifyChecksum(m, p.Payload.Checksum); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	cfg := configFromSnapshot(p.FeatureConfig, p.Payload.Dims)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return &loadedPattern{pattern: p, matrix: m, cfg: cfg}, nil
}

func (s *introService) loadPattern(patternID string) (*loadedPattern, error) {
	p, err := s.storage.GetPattern(patternID)
	if err != nil {
		return nil, err
	}
	return decodePattern(p)
}

// FetchItem downloads the head of url as a batch item.
func (s *introService) FetchItem(ctx context.Context, url string) (Item, error) {
	src, err := s.fetcher.FetchHead(ctx, url)
	if err != nil {
		return Item{}, err
	}
	return Item{Source: src, URL: url, Meta: models.MediaMeta{URL: url}}, nil
}

func (s *introService) resolve(ctx context.Context, item Item) (media.Source, error) {
	if len(item.Source.Data) > 0 {
		return item.Source, nil
	}
	if item.URL == "" {
		return media.Source{}, fmt.Errorf("%w: %s", ErrNoSource, item.Name())
	}
	s.log.Debugf("Fetching head of %s", item.URL)
	return s.fetcher.FetchHead(ctx, item.URL)
}

// Analyze locates the pattern's intro in one item.
func (s *introService) Analyze(ctx context.Context, patternID string, item Item) (*models.Analysis, error) {
	lp, err := s.loadPattern(patternID)
	if err != nil {
		return nil, err
	}
	return s.analyze(ctx, lp, item)
}

func (s *introService) analyze(ctx context.Context, lp *loadedPattern, item Item) (*models.Analysis, error) {
	row := s.newRow(lp, item)
	s.log.Infof("Analyzing %s against %q", row.Source, lp.pattern.Name)

	// 1. Resolve the media bytes
	src, err := s.resolve(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to load media: %w", err)
	}

	// 2. Decode the head window
	wav, err := s.decoder.DecodeHead(ctx, src, s.config.HeadWindowS)
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}
	sig, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV data: %w", err)
	}
	if lp.cfg.SampleRate > 0 && sig.SampleRate != lp.cfg.SampleRate {
		s.log.Warnf("Target is %d Hz but pattern was built at %d Hz", sig.SampleRate, lp.cfg.SampleRate)
	}

	// 3. Featurize with the pattern's snapshot
	target, fallbacks, err := features.Featurize(sig, lp.cfg, s.extractor)
	if err != nil {
		return nil, fmt.Errorf("featurization failed: %w", err)
	}
	if fallbacks > 0 {
		s.log.Warnf("%d of %d target frames fell back to zero vectors", fallbacks, target.Frames)
	}

	// 4. Slide the pattern over the target
	res, err := matcher.MatchParallel(target, lp.matrix, s.config.MatchWorkers)
	if err != nil {
		return nil, fmt.Errorf("matching failed: %w", err)
	}
	score := matcher.Interpret(res, lp.cfg.Hop, sig.SampleRate)

	// 5. Duration and outro
	if row.DurationS == nil {
		if dur, err := s.decoder.Duration(ctx, src); err == nil {
			row.DurationS = &dur
		} else {
			s.log.Debugf("Duration of %s unknown: %v", row.Source, err)
		}
	}
	if row.DurationS != nil {
		if outro, ok := matcher.OutroStart(*row.DurationS, lp.pattern.Timing.OutroDurationS); ok {
			row.OutroStartS = &outro
		}
	}

	// 6. Fill in the match
	row.BestOffset = res.BestOffset
	if score.Matched {
		row.Matched = true
		row.Confidence = score.Confidence
		intro := score.IntroStartSeconds
		best := score.Raw
		if !math.IsNaN(intro) {
			row.IntroStartS = &intro
		}
		row.Score = &best
		if !math.IsInf(res.SecondBestDistance, 1) {
			second := res.SecondBestDistance
			row.SecondBestDistance = &second
		}
		s.log.Infof("Intro of %s at %.2fs (confidence %.2f, score %.4f)", row.Source, intro, score.Confidence, best)
	} else {
		s.log.Infof("No match in %s: target has %d frames, pattern %d", row.Source, target.Frames, lp.matrix.Frames)
	}
	return row, nil
}

func (s *introService) newRow(lp *loadedPattern, item Item) *models.Analysis {
	row := &models.Analysis{
		Source:      item.Name(),
		Meta:        item.Meta,
		PatternID:   lp.pattern.ID,
		PatternName: lp.pattern.Name,
		BestOffset:  matcher.NoMatch,
	}
	if row.Meta.URL == "" {
		row.Meta.URL = item.URL
	}
	if d := item.Meta.DurationS; d != nil && *d > 0 {
		dur := *d
		row.DurationS = &dur
	}
	return row
}

// AnalyzeBatch runs Analyze over items in order. A failing item is recorded
// on its row and the batch moves on; cancellation stops before the next item.
func (s *introService) AnalyzeBatch(ctx context.Context, patternID string, items []Item, progress ProgressFunc) ([]models.Analysis, error) {
	lp, err := s.loadPattern(patternID)
	if err != nil {
		return nil, err
	}

	rows := make([]models.Analysis, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			s.log.Warnf("Batch cancelled after %d of %d items", i, len(items))
			return rows, err
		}

		row, err := s.analyze(ctx, lp, item)
		if err != nil {
			s.log.Errorf("Item %s failed: %v", item.Name(), err)
			row = s.newRow(lp, item)
			row.Error = err.Error()
		}
		rows = append(rows, *row)

		if progress != nil {
			progress(i+1, len(items), &rows[len(rows)-1])
		}
	}
	return rows, nil
}

// ExportPattern returns the pattern document and its suggested file name.
func (s *introService) ExportPattern(patternID string) ([]byte, string, error) {
	p, err := s.storage.GetPattern(patternID)
	if err != nil {
		return nil, "", err
	}
	now := s.now()
	data, err := export.MarshalPattern(p, now)
	if err != nil {
		return nil, "", err
	}
	return data, export.PatternFileName(p.Name, p.ID, now), nil
}

// ImportPattern stores a pattern document produced by ExportPattern (or a
// bare pattern). A missing or taken id is replaced with a fresh one.
func (s *introService) ImportPattern(data []byte) (*models.Pattern, error) {
	p, err := export.UnmarshalPattern(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return nil, fmt.Errorf("%w: missing name", ErrInvalidPattern)
	case p.Payload.DataB64 == "":
		return nil, fmt.Errorf("%w: missing feature payload", ErrInvalidPattern)
	case p.Timing.IntroEndS <= p.Timing.IntroStartS && p.Timing.IntroDurationS <= 0:
		return nil, fmt.Errorf("%w: missing reference timing", ErrInvalidPattern)
	}
	if p.Timing.IntroDurationS <= 0 {
		p.Timing.IntroDurationS = p.Timing.IntroEndS - p.Timing.IntroStartS
	}
	if _, err := decodePattern(p); err != nil {
		return nil, err
	}

	if p.ID == "" {
		p.ID = utils.GenerateUUID()
	} else if exists, err := s.storage.PatternExists(p.ID); err != nil {
		return nil, err
	} else if exists {
		s.log.Infof("Pattern id %s already present, assigning a new one", utils.ShortID(p.ID))
		p.ID = utils.GenerateUUID()
	}

	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.AlgoVersion == "" {
		p.AlgoVersion = models.AlgoVersion
	}
	p.ImportedAt = &now

	if err := s.storage.SavePattern(p); err != nil {
		return nil, fmt.Errorf("failed to store pattern: %w", err)
	}
	s.log.Infof("Imported pattern %q id=%s", p.Name, utils.ShortID(p.ID))
	return p, nil
}

func (s *introService) GetPattern(patternID string) (*models.Pattern, error) {
	return s.storage.GetPattern(patternID)
}

func (s *introService) ListPatterns() ([]models.PatternSummary, error) {
	patterns, err := s.storage.ListPatterns()
	if err != nil {
		return nil, err
	}
	out := make([]models.PatternSummary, len(patterns))
	for i := range patterns {
		out[i] = patterns[i].Summary()
	}
	return out, nil
}

func (s *introService) DeletePattern(patternID string) error {
	if err := s.storage.DeletePattern(patternID); err != nil {
		return err
	}
	s.log.Infof("Deleted pattern %s", patternID)
	return nil
}

func (s *introService) Close() error {
	return s.storage.Close()
}

// IsNotFound reports whether err means the pattern does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPatternNotFound)
}
