package intromatch

import (
	"github.com/himanishpuri/IntroMatch/internal/features"
)

const (
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
	StoreMemory = "memory"

	DefaultHeadWindowS = 180.0
)

type Config struct {
	DBPath       string
	StoreBackend string
	TempDir      string
	DecoderName  string
	HeadWindowS  float64
	Features     features.Config
	MatchWorkers int

	Decoder   Decoder
	Extractor features.Extractor
	Fetcher   Fetcher
	Logger    Logger
	Storage   Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithStoreBackend selects "sqlite", "badger" or "memory". DBPath is the
// sqlite file or the badger directory.
func WithStoreBackend(backend string) Option {
	return func(c *Config) {
		c.StoreBackend = backend
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithDecoderName picks a built-in decoder: "auto", "ffmpeg" or "native".
func WithDecoderName(name string) Option {
	return func(c *Config) {
		c.DecoderName = name
	}
}

// WithHeadWindow limits how many seconds of each target are searched.
func WithHeadWindow(seconds float64) Option {
	return func(c *Config) {
		if seconds > 0 {
			c.HeadWindowS = seconds
		}
	}
}

// WithFeatureConfig sets the featurization used for new patterns. Targets
// are always processed with the snapshot stored on their pattern.
func WithFeatureConfig(cfg features.Config) Option {
	return func(c *Config) {
		c.Features = cfg
	}
}

func WithMatchWorkers(n int) Option {
	return func(c *Config) {
		c.MatchWorkers = n
	}
}

func WithDecoder(d Decoder) Option {
	return func(c *Config) {
		c.Decoder = d
	}
}

func WithExtractor(ex features.Extractor) Option {
	return func(c *Config) {
		c.Extractor = ex
	}
}

func WithFetcher(f Fetcher) Option {
	return func(c *Config) {
		c.Fetcher = f
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:       "intromatch.sqlite3",
		StoreBackend: StoreSQLite,
		TempDir:      "",
		DecoderName:  "auto",
		HeadWindowS:  DefaultHeadWindowS,
		Features:     features.DefaultConfig(),
		MatchWorkers: 0,
	}
}
