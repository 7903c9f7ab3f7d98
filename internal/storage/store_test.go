package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/himanishpuri/IntroMatch/pkg/models"
)

// patternStore is the method set both backends share.
type patternStore interface {
	SavePattern(p *models.Pattern) error
	GetPattern(id string) (*models.Pattern, error)
	PatternExists(id string) (bool, error)
	ListPatterns() ([]models.Pattern, error)
	DeletePattern(id string) error
}

func samplePattern(id, name string) *models.Pattern {
	outro := 42.5
	return &models.Pattern{
		ID:          id,
		Name:        name,
		CreatedAt:   time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		AlgoVersion: models.AlgoVersion,
		Timing: models.ReferenceTiming{
			IntroStartS:    12,
			IntroEndS:      20.5,
			IntroDurationS: 8.5,
			OutroDurationS: &outro,
		},
		FeatureConfig: models.FeatureConfig{
			FeatureType:   "mfcc13",
			SampleRate:    16000,
			Win:           1024,
			Hop:           512,
			MelBins:       40,
			Normalization: "zscore",
		},
		Payload: models.FeaturePayload{
			Format:     "f32",
			FrameCount: 1,
			Dims:       1,
			DataB64:    "AACAPw==",
			Checksum:   "0123456789abcdef",
		},
	}
}

func runStoreSuite(t *testing.T, store patternStore) {
	t.Helper()

	a := samplePattern("11111111-1111-4111-8111-111111111111", "Tagesschau")
	b := samplePattern("22222222-2222-4222-8222-222222222222", "Abendschau")
	c := samplePattern("00000000-0000-4000-8000-000000000000", "Tagesschau")
	c.Timing.OutroDurationS = nil

	t.Run("save", func(t *testing.T) {
		for _, p := range []*models.Pattern{a, b, c} {
			if err := store.SavePattern(p); err != nil {
				t.Fatalf("SavePattern(%s) failed: %v", p.ID, err)
			}
		}
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		dup := samplePattern(a.ID, "Other")
		if err := store.SavePattern(dup); !errors.Is(err, ErrPatternExists) {
			t.Errorf("Expected ErrPatternExists, got %v", err)
		}
		got, err := store.GetPattern(a.ID)
		if err != nil {
			t.Fatalf("GetPattern failed: %v", err)
		}
		if got.Name != "Tagesschau" {
			t.Errorf("existing pattern was overwritten: %q", got.Name)
		}
	})

	t.Run("get", func(t *testing.T) {
		got, err := store.GetPattern(a.ID)
		if err != nil {
			t.Fatalf("GetPattern failed: %v", err)
		}
		if got.Name != a.Name || got.AlgoVersion != a.AlgoVersion {
			t.Errorf("unexpected pattern %+v", got)
		}
		if !got.CreatedAt.Equal(a.CreatedAt) {
			t.Errorf("Expected created_at %v, got %v", a.CreatedAt, got.CreatedAt)
		}
		if got.Timing.OutroDurationS == nil || *got.Timing.OutroDurationS != 42.5 {
			t.Errorf("Expected outro 42.5, got %v", got.Timing.OutroDurationS)
		}
		if got.Payload != a.Payload {
			t.Errorf("Expected payload %+v, got %+v", a.Payload, got.Payload)
		}
		if got.FeatureConfig != a.FeatureConfig {
			t.Errorf("Expected feature config %+v, got %+v", a.FeatureConfig, got.FeatureConfig)
		}

		gotC, err := store.GetPattern(c.ID)
		if err != nil {
			t.Fatalf("GetPattern failed: %v", err)
		}
		if gotC.Timing.OutroDurationS != nil {
			t.Errorf("Expected nil outro, got %v", *gotC.Timing.OutroDurationS)
		}
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := store.PatternExists(b.ID)
		if err != nil || !ok {
			t.Errorf("Expected pattern to exist (err=%v)", err)
		}
		ok, err = store.PatternExists("missing")
		if err != nil || ok {
			t.Errorf("Expected missing pattern to be absent (err=%v)", err)
		}
	})

	t.Run("list ordered by name then id", func(t *testing.T) {
		list, err := store.ListPatterns()
		if err != nil {
			t.Fatalf("ListPatterns failed: %v", err)
		}
		want := []string{b.ID, c.ID, a.ID}
		if len(list) != len(want) {
			t.Fatalf("Expected %d patterns, got %d", len(want), len(list))
		}
		for i, id := range want {
			if list[i].ID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, list[i].ID)
			}
		}
	})

	t.Run("get missing", func(t *testing.T) {
		if _, err := store.GetPattern("missing"); !errors.Is(err, ErrPatternNotFound) {
			t.Errorf("Expected ErrPatternNotFound, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := store.DeletePattern(a.ID); err != nil {
			t.Fatalf("DeletePattern failed: %v", err)
		}
		if _, err := store.GetPattern(a.ID); !errors.Is(err, ErrPatternNotFound) {
			t.Errorf("Expected ErrPatternNotFound after delete, got %v", err)
		}
		if err := store.DeletePattern(a.ID); !errors.Is(err, ErrPatternNotFound) {
			t.Errorf("Expected ErrPatternNotFound deleting twice, got %v", err)
		}
		list, err := store.ListPatterns()
		if err != nil {
			t.Fatalf("ListPatterns failed: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("Expected 2 patterns after delete, got %d", len(list))
		}
	})
}
