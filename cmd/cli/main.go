package main

import (
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/himanishpuri/IntroMatch/internal/batch"
	"github.com/himanishpuri/IntroMatch/pkg/intromatch"
	"github.com/himanishpuri/IntroMatch/pkg/logger"
)

var version = "1.0.0"

// Globals are the options shared by every command.
type Globals struct {
	DB         string  `name:"db" env:"INTRO_DB_PATH" default:"intromatch.sqlite3" help:"SQLite database file or badger directory"`
	Store      string  `env:"INTRO_STORE" default:"sqlite" enum:"sqlite,badger,memory" help:"Pattern store: sqlite, badger or memory"`
	Temp       string  `env:"INTRO_TEMP_DIR" default:"" help:"Directory for temporary decoder files (default: system temp)"`
	Decoder    string  `env:"INTRO_DECODER" default:"auto" enum:"auto,ffmpeg,native" help:"Media decoder: auto, ffmpeg or native"`
	HeadWindow float64 `name:"head-window" env:"INTRO_HEAD_WINDOW" default:"180" help:"Seconds of each file searched for the intro"`
	Workers    int     `default:"0" help:"Matcher goroutines (0 = all CPUs)"`
	LogLevel   string  `name:"log-level" env:"INTRO_LOG_LEVEL" default:"warn" help:"Log level: debug, info, warn or error"`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version information"`

	Pattern PatternCmd `cmd:"" help:"Create and manage intro patterns"`
	Analyze AnalyzeCmd `cmd:"" help:"Find a pattern's intro in media files or URLs"`
	Batch   BatchCmd   `cmd:"" help:"Analyze every entry of a batch list and write reports"`
}

func (g *Globals) service() (intromatch.Service, error) {
	return intromatch.NewService(
		intromatch.WithDBPath(g.DB),
		intromatch.WithStoreBackend(g.Store),
		intromatch.WithTempDir(g.Temp),
		intromatch.WithDecoderName(g.Decoder),
		intromatch.WithHeadWindow(g.HeadWindow),
		intromatch.WithMatchWorkers(g.Workers),
	)
}

// commandTimeout bounds a single-file command.
const commandTimeout = 5 * time.Minute

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("intromatch"),
		kong.Description("Locate a known intro in the first minutes of media files"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
			"cdn":     batch.DefaultCDNBase,
		},
	)

	if level, ok := logger.ParseLevel(cli.LogLevel); ok {
		logger.SetLevel(level)
	}

	if err := ctx.Run(&cli.Globals); err != nil {
		PrintError(err.Error())
		os.Exit(1)
	}
}
