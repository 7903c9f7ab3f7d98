//go:build !js && !wasm

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/himanishpuri/IntroMatch/pkg/logger"
)

// shutdownGrace bounds how long Start waits for in-flight requests.
const shutdownGrace = 30 * time.Second

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Service banner
	mux.HandleFunc("/", s.handleRoot)

	// Health endpoints
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/health/metrics", s.handleMetrics)

	// Pattern management endpoints
	mux.HandleFunc("/api/patterns", s.handlePatterns)
	mux.HandleFunc("/api/patterns/import", s.handleImportRoute)
	mux.HandleFunc("/api/patterns/", s.handlePattern)

	// Analysis endpoints
	mux.HandleFunc("/api/analyze", s.handleAnalyzeRoute)
	mux.HandleFunc("/api/analyze/batch", s.handleBatchRoute)

	// CORS runs outermost so preflights are answered before logging
	return corsMiddleware(s.config.AllowedOrigins)(loggingMiddleware(mux))
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				// No list, or an explicit wildcard: any origin
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				// Echo the origin back only when it is listed
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
						allowed = true
						break
					}
				}
			}

			// Content-Disposition is exposed so browsers can read export file names
			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs requests at debug level
func loggingMiddleware(next http.Handler) http.Handler {
	log := logger.GetLogger().Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Capture the status code written by the handler
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Debugf("%s %s from %s -> %d", r.Method, r.URL.Path, getClientIP(r), wrapped.statusCode)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may hold a proxy chain; the client is the first hop
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	// Single-proxy setups
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Direct connection: strip the port
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Start serves until ctx is cancelled, then drains open requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("IntroMatch server starting on %s", srv.Addr)
	s.log.Infof("   Store: %s (%s)", s.config.StoreBackend, s.config.DBPath)
	s.log.Infof("   Decoder: %s, head window %.0fs", s.config.Decoder, s.config.HeadWindowS)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)

	// Serve in the background so ctx cancellation can trigger a drain
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Infof("Shutting down, waiting up to %s for open requests", shutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
