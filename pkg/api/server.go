// Package api provides the administrative HTTP surface of a cache manager:
// stats, clear, cleanup, and pattern invalidation over JSON, plus liveness
// and readiness probes. The server is backed by any types.Controller, so it
// never needs to know the cached value type.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	cacheerrors "github.com/scancache/scancache/pkg/errors"
	"github.com/scancache/scancache/pkg/types"
)

// Server exposes cache administration over HTTP
type Server struct {
	httpServer *http.Server
	controller types.Controller
	logger     *zap.Logger
	config     ServerConfig
}

// ServerConfig configures the API server
type ServerConfig struct {
	// Address to bind the server to (e.g., "localhost:8080")
	Address string `yaml:"address" json:"address"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing
	EnableCORS bool `yaml:"enable_cors" json:"enable_cors"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      "localhost:8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		EnableCORS:   true,
	}
}

// NewServer creates a new API server over the given controller
func NewServer(config ServerConfig, controller types.Controller, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		controller: controller,
		logger:     logger,
		config:     config,
	}

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      s.buildHandler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the fully assembled HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	// Cache administration endpoints
	mux.HandleFunc("/cache/stats", s.handleStats)
	mux.HandleFunc("/cache/clear", s.handleClear)
	mux.HandleFunc("/cache/cleanup", s.handleCleanup)
	mux.HandleFunc("/cache/invalidate", s.handleInvalidate)

	// Health endpoints
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)

	// Debug endpoint
	mux.HandleFunc("/debug/cache", s.handleDebugCache)

	handler := s.loggingMiddleware(mux)
	if s.config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}
	return handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting admin server", zap.String("address", s.config.Address))
	return s.httpServer.ListenAndServe()
}

// StartBackground starts the server in a background goroutine
func (s *Server) StartBackground() {
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin server error", zap.Error(err))
		}
	}()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down admin server")
	return s.httpServer.Shutdown(ctx)
}

// Cache administration handlers

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats": s.controller.Stats(),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.controller.Clear()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "cache cleared",
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cleaned := s.controller.Cleanup()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"cleaned_count": cleaned,
	})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		s.respondError(w, http.StatusBadRequest, "Query parameter 'pattern' required")
		return
	}

	invalidated, err := s.controller.InvalidatePattern(pattern)
	if err != nil {
		status := http.StatusBadRequest
		if cacheErr, ok := err.(*cacheerrors.CacheError); ok && cacheErr.HTTPStatus != 0 {
			status = cacheErr.HTTPStatus
		}
		s.respondError(w, status, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"invalidated_count": invalidated,
		"pattern":           pattern,
	})
}

// Health endpoint handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Liveness probe - is the service running?
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"alive":     true,
		"timestamp": time.Now(),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Readiness probe - the server only runs while a controller is wired in,
	// so ready follows from having one.
	ready := s.controller != nil
	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	s.respondJSON(w, statusCode, map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now(),
	})
}

// Debug endpoint

func (s *Server) handleDebugCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats := s.controller.Stats()

	w.Header().Set("Content-Type", "text/plain")

	// Helper to avoid errcheck noise on best-effort debug output
	writef := func(format string, args ...interface{}) { _, _ = fmt.Fprintf(w, format, args...) }

	writef("Cache Snapshot\n")
	writef("==============\n\n")
	writef("Memory entries: %s\n", humanize.Comma(int64(stats.MemoryEntries)))
	writef("Disk entries:   %s\n", humanize.Comma(int64(stats.DiskEntries)))
	writef("Memory size:    %s\n", humanize.Bytes(uint64(stats.MemoryBytes)))
	writef("Total hits:     %s\n", humanize.Comma(int64(stats.TotalHits)))
	writef("Total misses:   %s\n", humanize.Comma(int64(stats.TotalMisses)))
	writef("Hit rate:       %.2f%%\n", stats.HitRate*100)
	if stats.LastClearedAt.IsZero() {
		writef("Last cleared:   never\n")
	} else {
		writef("Last cleared:   %s (%s)\n",
			stats.LastClearedAt.Format(time.RFC3339),
			humanize.Time(stats.LastClearedAt))
	}
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("admin request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Helper methods

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("error encoding JSON response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]interface{}{
		"error":     message,
		"timestamp": time.Now(),
	})
}
