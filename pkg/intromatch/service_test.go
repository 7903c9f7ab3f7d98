package intromatch

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/IntroMatch/internal/audio"
	"github.com/himanishpuri/IntroMatch/internal/features"
	"github.com/himanishpuri/IntroMatch/internal/media"
	"github.com/himanishpuri/IntroMatch/pkg/logger"
	"github.com/himanishpuri/IntroMatch/pkg/models"
)

const testRate = 16000

var (
	introFreqs  = []float64{400, 1300, 700, 2100, 550, 1700, 900, 2600, 480, 1100, 3000, 620, 1500, 820, 2300, 1000}
	fillerFreqs = []float64{350, 2800, 760, 1900, 450, 1250, 3300, 600, 2000, 950, 1600, 520, 2450, 880, 1400}
)

// tones renders n samples of 0.1s sine segments cycling through freqs,
// starting at freqs[rot].
func tones(freqs []float64, rot, n int) []float32 {
	const seg = testRate / 10
	out := make([]float32, n)
	for i := range out {
		f := freqs[(i/seg+rot)%len(freqs)]
		out[i] = float32(0.5 * math.Sin(2*math.Pi*f*float64(i)/testRate))
	}
	return out
}

func concat(parts ...[]float32) []float32 {
	var out []float32
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// stubDecoder serves pre-rendered clips by source name.
type stubDecoder struct {
	clips map[string][]float32
}

func (d *stubDecoder) clip(src media.Source) ([]float32, error) {
	c, ok := d.clips[src.Name]
	if !ok {
		return nil, media.ErrUnsupportedContainer
	}
	return c, nil
}

func (d *stubDecoder) DecodeSegment(ctx context.Context, src media.Source, startS, durationS float64) ([]byte, error) {
	c, err := d.clip(src)
	if err != nil {
		return nil, err
	}
	start := min(int(math.Round(startS*testRate)), len(c))
	end := min(start+int(math.Round(durationS*testRate)), len(c))
	return audio.EncodeWAV16(testRate, c[start:end])
}

func (d *stubDecoder) DecodeHead(ctx context.Context, src media.Source, headWindowS float64) ([]byte, error) {
	return d.DecodeSegment(ctx, src, 0, headWindowS)
}

func (d *stubDecoder) Duration(ctx context.Context, src media.Source) (float64, error) {
	c, err := d.clip(src)
	if err != nil {
		return 0, err
	}
	return float64(len(c)) / testRate, nil
}

type stubFetcher struct {
	calls int
}

func (f *stubFetcher) FetchHead(ctx context.Context, url string) (media.Source, error) {
	f.calls++
	name := url[strings.LastIndex(url, "/")+1:]
	return media.Source{Name: name, Data: []byte("remote")}, nil
}

const (
	refIntroStart = 32768 // samples
	introLen      = 24576
	targetOffset  = 40 // hops
)

func testClips() map[string][]float32 {
	intro := tones(introFreqs, 0, introLen)
	return map[string][]float32{
		"ref.wav":    concat(tones(fillerFreqs, 0, refIntroStart), intro, tones(fillerFreqs, 3, 16000)),
		"target.wav": concat(tones(fillerFreqs, 7, targetOffset*512), intro, tones(fillerFreqs, 2, 20000)),
		"short.wav":  tones(fillerFreqs, 0, 8000),
	}
}

func src(name string) media.Source {
	return media.Source{Name: name, Data: []byte("stub")}
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

func newTestService(t *testing.T, opts ...Option) (*introService, *stubFetcher) {
	t.Helper()
	fetcher := &stubFetcher{}
	base := []Option{
		WithDBPath(t.TempDir() + "/patterns.sqlite3"),
		WithDecoder(&stubDecoder{clips: testClips()}),
		WithFetcher(fetcher),
		WithLogger(quietLogger()),
		WithMatchWorkers(2),
	}
	svc, err := NewService(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc.(*introService), fetcher
}

func outro(v float64) *float64 { return &v }

func createRefPattern(t *testing.T, svc Service) *models.Pattern {
	t.Helper()
	start := float64(refIntroStart) / testRate
	p, err := svc.CreatePattern(context.Background(), src("ref.wav"), PatternRequest{
		Name:           "Nordmagazin",
		IntroStartS:    start,
		IntroEndS:      start + float64(introLen)/testRate,
		OutroDurationS: outro(2),
	})
	if err != nil {
		t.Fatalf("CreatePattern failed: %v", err)
	}
	return p
}

func TestCreatePattern(t *testing.T) {
	svc, _ := newTestService(t)
	p := createRefPattern(t, svc)

	if p.ID == "" || p.Name != "Nordmagazin" {
		t.Errorf("Unexpected identity: %q %q", p.ID, p.Name)
	}
	if p.AlgoVersion != models.AlgoVersion {
		t.Errorf("Expected algo version %s, got %s", models.AlgoVersion, p.AlgoVersion)
	}
	wantFrames := (introLen-1024)/512 + 1
	if p.Payload.FrameCount != wantFrames || p.Payload.Dims != 13 {
		t.Errorf("Expected %dx13 payload, got %dx%d", wantFrames, p.Payload.FrameCount, p.Payload.Dims)
	}
	fc := p.FeatureConfig
	if fc.FeatureType != "mfcc13" || fc.SampleRate != testRate || fc.Win != 1024 || fc.Hop != 512 || fc.Normalization != "zscore" {
		t.Errorf("Unexpected feature config: %+v", fc)
	}
	if math.Abs(p.Timing.IntroDurationS-float64(introLen)/testRate) > 1e-9 {
		t.Errorf("Unexpected intro duration %v", p.Timing.IntroDurationS)
	}

	stored, err := svc.GetPattern(p.ID)
	if err != nil {
		t.Fatalf("GetPattern failed: %v", err)
	}
	if stored.Payload.Checksum != p.Payload.Checksum {
		t.Error("stored checksum differs")
	}
}

func TestCreatePatternDefaultsName(t *testing.T) {
	svc, _ := newTestService(t)
	p, err := svc.CreatePattern(context.Background(), src("ref.wav"), PatternRequest{IntroStartS: 2, IntroEndS: 3})
	if err != nil {
		t.Fatalf("CreatePattern failed: %v", err)
	}
	if p.Name != "ref" {
		t.Errorf("Expected name from file, got %q", p.Name)
	}
	if p.Timing.OutroDurationS != nil {
		t.Errorf("Expected no outro duration, got %v", *p.Timing.OutroDurationS)
	}
}

func TestCreatePatternInvalidTiming(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name string
		req  PatternRequest
	}{
		{name: "negative start", req: PatternRequest{IntroStartS: -1, IntroEndS: 2}},
		{name: "end before start", req: PatternRequest{IntroStartS: 5, IntroEndS: 4}},
		{name: "empty range", req: PatternRequest{IntroStartS: 3, IntroEndS: 3}},
		{name: "NaN", req: PatternRequest{IntroStartS: math.NaN(), IntroEndS: 3}},
		{name: "negative outro", req: PatternRequest{IntroStartS: 1, IntroEndS: 3, OutroDurationS: outro(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePattern(context.Background(), src("ref.wav"), tt.req)
			if !errors.Is(err, ErrInvalidTiming) {
				t.Errorf("Expected ErrInvalidTiming, got %v", err)
			}
		})
	}
}

func TestCreatePatternTooShort(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreatePattern(context.Background(), src("ref.wav"), PatternRequest{IntroStartS: 1, IntroEndS: 1.01})
	if !errors.Is(err, ErrPatternTooShort) {
		t.Errorf("Expected ErrPatternTooShort, got %v", err)
	}
	list, _ := svc.ListPatterns()
	if len(list) != 0 {
		t.Errorf("Expected nothing stored, got %d patterns", len(list))
	}
}

func TestAnalyzeFindsIntro(t *testing.T) {
	svc, _ := newTestService(t)
	p := createRefPattern(t, svc)

	row, err := svc.Analyze(context.Background(), p.ID, Item{Source: src("target.wav")})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !row.Matched {
		t.Fatal("Expected a match")
	}
	if row.BestOffset != targetOffset {
		t.Errorf("Expected offset %d, got %d", targetOffset, row.BestOffset)
	}
	wantStart := float64(targetOffset*512) / testRate
	if row.IntroStartS == nil || math.Abs(*row.IntroStartS-wantStart) > 1e-9 {
		t.Errorf("Expected intro at %v, got %v", wantStart, row.IntroStartS)
	}
	if row.Confidence <= 0 || row.Confidence > 1 {
		t.Errorf("Expected confidence in (0, 1], got %v", row.Confidence)
	}
	if row.Score == nil || row.SecondBestDistance == nil || *row.Score > *row.SecondBestDistance {
		t.Errorf("Expected best <= second best, got %v / %v", row.Score, row.SecondBestDistance)
	}

	total := float64(targetOffset*512+introLen+20000) / testRate
	if row.DurationS == nil || math.Abs(*row.DurationS-total) > 1e-9 {
		t.Errorf("Expected duration %v, got %v", total, row.DurationS)
	}
	if row.OutroStartS == nil || math.Abs(*row.OutroStartS-(total-2)) > 1e-9 {
		t.Errorf("Expected outro at %v, got %v", total-2, row.OutroStartS)
	}
	if row.PatternID != p.ID || row.PatternName != "Nordmagazin" || row.Source != "target.wav" {
		t.Errorf("Unexpected row identity: %+v", row)
	}
}

func TestAnalyzePrefersMetadataDuration(t *testing.T) {
	svc, _ := newTestService(t)
	p := createRefPattern(t, svc)

	dur := 1800.0
	row, err := svc.Analyze(context.Background(), p.ID, Item{
		Source: src("target.wav"),
		Meta:   models.MediaMeta{CMSID: "CMS-1", DurationS: &dur},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if *row.DurationS != 1800 || *row.OutroStartS != 1798 {
		t.Errorf("Expected metadata duration, got %v / %v", *row.DurationS, *row.OutroStartS)
	}
	if row.Meta.CMSID != "CMS-1" {
		t.Errorf("Expected metadata carried onto row, got %+v", row.Meta)
	}
}

func TestAnalyzeShortTarget(t *testing.T) {
	svc, _ := newTestService(t)
	p := createRefPattern(t, svc)

	row, err := svc.Analyze(context.Background(), p.ID, Item{Source: src("short.wav")})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if row.Matched || row.BestOffset != -1 {
		t.Errorf("Expected no match, got matched=%v offset=%d", row.Matched, row.BestOffset)
	}
	if row.IntroStartS != nil || row.Score != nil {
		t.Error("Expected intro start and score to be unset")
	}
	if row.OutroStartS == nil {
		t.Error("Expected outro to be reported from the duration even without a match")
	}
}

func TestAnalyzeFetchesURLItems(t *testing.T) {
	svc, fetcher := newTestService(t)
	p := createRefPattern(t, svc)

	row, err := svc.Analyze(context.Background(), p.ID, Item{URL: "https://cdn.example.org/show/target.wav"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("Expected one fetch, got %d", fetcher.calls)
	}
	if !row.Matched || row.BestOffset != targetOffset {
		t.Errorf("Expected match at %d, got %+v", targetOffset, row)
	}
	if row.Meta.URL != "https://cdn.example.org/show/target.wav" {
		t.Errorf("Expected URL on row meta, got %q", row.Meta.URL)
	}

	item, err := svc.FetchItem(context.Background(), "https://cdn.example.org/target.wav")
	if err != nil {
		t.Fatalf("FetchItem failed: %v", err)
	}
	if item.Name() != "target.wav" || len(item.Source.Data) == 0 {
		t.Errorf("Unexpected item: %+v", item)
	}
}

func TestAnalyzeUnknownPattern(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Analyze(context.Background(), "missing", Item{Source: src("target.wav")})
	if !IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestAnalyzeBatchContinuesAfterFailures(t *testing.T) {
	svc, _ := newTestService(t)
	p := createRefPattern(t, svc)

	items := []Item{
		{Source: src("target.wav")},
		{Source: src("unknown.mp4")},
		{Meta: models.MediaMeta{CMSID: "CMS-9"}},
		{Source: src("short.wav")},
	}
	var seen []int
	rows, err := svc.AnalyzeBatch(context.Background(), p.ID, items, func(done, total int, row *models.Analysis) {
		if total != len(items) {
			t.Errorf("Expected total %d, got %d", len(items), total)
		}
		seen = append(seen, done)
	})
	if err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}
	if len(rows) != 4 || len(seen) != 4 || seen[3] != 4 {
		t.Fatalf("Expected 4 rows and 4 progress calls, got %d / %v", len(rows), seen)
	}
	if rows[0].Failed() || !rows[0].Matched {
		t.Errorf("row 0: expected match, got %+v", rows[0])
	}
	if !rows[1].Failed() || !strings.Contains(rows[1].Error, "unsupported") {
		t.Errorf("row 1: expected decode failure, got %q", rows[1].Error)
	}
	if !rows[2].Failed() || rows[2].Source != "CMS-9" {
		t.Errorf("row 2: expected missing-source failure, got %+v", rows[2])
	}
	if rows[3].Failed() || rows[3].Matched {
		t.Errorf("row 3: expected clean no-match, got %+v", rows[3])
	}
}

func TestAnalyzeBatchStopsWhenCancelled(t *testing.T) {
	svc, _ := newTestService(t)
	p := createRefPattern(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	items := []Item{{Source: src("target.wav")}, {Source: src("target.wav")}}
	rows, err := svc.AnalyzeBatch(ctx, p.ID, items, func(done, total int, row *models.Analysis) {
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected 1 finished row, got %d", len(rows))
	}
}

func TestExportImportPattern(t *testing.T) {
	svc, _ := newTestService(t)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 11, 5, 0, 0, time.UTC) }
	p := createRefPattern(t, svc)

	data, name, err := svc.ExportPattern(p.ID)
	if err != nil {
		t.Fatalf("ExportPattern failed: %v", err)
	}
	wantName := "pattern_20250301_1205_nordmagazin_" + p.ID[:8] + ".json"
	if name != wantName {
		t.Errorf("Expected file name %s, got %s", wantName, name)
	}

	// Same store: the id collides and is replaced.
	dup, err := svc.ImportPattern(data)
	if err != nil {
		t.Fatalf("ImportPattern failed: %v", err)
	}
	if dup.ID == p.ID {
		t.Error("Expected a fresh id on collision")
	}
	if dup.ImportedAt == nil {
		t.Error("Expected imported_at to be set")
	}

	// Fresh store: the id is kept.
	other, _ := newTestService(t, WithStorage(mustMemory(t)))
	imported, err := other.ImportPattern(data)
	if err != nil {
		t.Fatalf("ImportPattern failed: %v", err)
	}
	if imported.ID != p.ID {
		t.Errorf("Expected id %s to be kept, got %s", p.ID, imported.ID)
	}

	row, err := other.Analyze(context.Background(), imported.ID, Item{Source: src("target.wav")})
	if err != nil {
		t.Fatalf("Analyze with imported pattern failed: %v", err)
	}
	if row.BestOffset != targetOffset {
		t.Errorf("Expected offset %d with imported pattern, got %d", targetOffset, row.BestOffset)
	}
}

func mustMemory(t *testing.T) Storage {
	t.Helper()
	s, err := NewMemoryStorage()
	if err != nil {
		t.Fatalf("NewMemoryStorage failed: %v", err)
	}
	return s
}

func TestImportPatternRejects(t *testing.T) {
	svc, _ := newTestService(t)
	p := createRefPattern(t, svc)
	good, _, err := svc.ExportPattern(p.ID)
	if err != nil {
		t.Fatalf("ExportPattern failed: %v", err)
	}
	doc := string(good)

	tests := []struct {
		name string
		data string
	}{
		{name: "garbage", data: "not json"},
		{name: "no name", data: strings.Replace(doc, `"name": "Nordmagazin"`, `"name": ""`, 1)},
		{name: "no payload", data: strings.Replace(doc, p.Payload.DataB64, "", 1)},
		{name: "bad checksum", data: strings.Replace(doc, p.Payload.Checksum, "0000000000000000", 1)},
		{name: "fewer mel bins than coefficients", data: strings.Replace(doc, `"mel_bins": 40`, `"mel_bins": 8`, 1)},
		{name: "no timing", data: `{"pattern_id":"x","name":"n","feature_payload":{"format":"f32","frame_count":1,"dims":1,"data_b64":"AAAAAA=="}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ImportPattern([]byte(tt.data)); !errors.Is(err, ErrInvalidPattern) {
				t.Errorf("Expected ErrInvalidPattern, got %v", err)
			}
		})
	}
}

func TestListAndDeletePatterns(t *testing.T) {
	svc, _ := newTestService(t, WithStorage(mustMemory(t)))
	a := createRefPattern(t, svc)

	list, err := svc.ListPatterns()
	if err != nil {
		t.Fatalf("ListPatterns failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID || list[0].FrameCount != a.Payload.FrameCount {
		t.Fatalf("Unexpected listing: %+v", list)
	}

	if err := svc.DeletePattern(a.ID); err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}
	if err := svc.DeletePattern(a.ID); !IsNotFound(err) {
		t.Errorf("Expected not found on second delete, got %v", err)
	}
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	_, err := NewService(
		WithLogger(quietLogger()),
		WithDecoder(&stubDecoder{}),
		WithFeatureConfig(features.Config{FrameSize: 1024, Hop: 0, Coefficients: 13}),
	)
	if err == nil {
		t.Fatal("Expected invalid feature config error")
	}

	_, err = NewService(WithLogger(quietLogger()), WithStoreBackend("mongo"), WithDecoder(&stubDecoder{}))
	if err == nil {
		t.Fatal("Expected unknown backend error")
	}
}
