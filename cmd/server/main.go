//go:build !js && !wasm

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/himanishpuri/IntroMatch/pkg/intromatch"
	"github.com/himanishpuri/IntroMatch/pkg/logger"
)

var (
	port           int
	dbPath         string
	storeBackend   string
	tempDir        string
	decoderName    string
	headWindow     float64
	matchWorkers   int
	allowedOrigins string
	logLevel       string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("INTRO_DB_PATH", "intromatch.sqlite3"), "Path to SQLite database or badger directory")
	flag.StringVar(&storeBackend, "store", getEnvOrDefault("INTRO_STORE", intromatch.StoreSQLite), "Pattern store: sqlite, badger or memory")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("INTRO_TEMP_DIR", os.TempDir()), "Temporary directory")
	flag.StringVar(&decoderName, "decoder", getEnvOrDefault("INTRO_DECODER", "auto"), "Media decoder: auto, ffmpeg or native")
	flag.Float64Var(&headWindow, "head-window", envFloat("INTRO_HEAD_WINDOW", intromatch.DefaultHeadWindowS), "Seconds of each file searched for the intro")
	flag.IntVar(&matchWorkers, "workers", 0, "Matcher goroutines (0 = all CPUs)")
	flag.StringVar(&logLevel, "log-level", getEnvOrDefault("INTRO_LOG_LEVEL", "info"), "Log level: debug, info, warn or error")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func main() {
	flag.Parse()
	log := logger.GetLogger()
	if level, ok := logger.ParseLevel(logLevel); ok {
		log.SetLevel(level)
	}

	// Parse allowed origins
	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	service, err := intromatch.NewService(
		intromatch.WithDBPath(dbPath),
		intromatch.WithStoreBackend(storeBackend),
		intromatch.WithTempDir(tempDir),
		intromatch.WithDecoderName(decoderName),
		intromatch.WithHeadWindow(headWindow),
		intromatch.WithMatchWorkers(matchWorkers),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		StoreBackend:   storeBackend,
		Decoder:        decoderName,
		HeadWindowS:    headWindow,
		AllowedOrigins: origins,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(service, config)
	if err := server.Start(ctx); err != nil {
		service.Close()
		log.Fatalf("Server failed: %v", err)
	}
	log.Infof("Server stopped")
}
