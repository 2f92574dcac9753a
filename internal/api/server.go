// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kittagency/ydun-scraper/internal/batch"
	"github.com/kittagency/ydun-scraper/internal/config"
	"github.com/kittagency/ydun-scraper/internal/metrics"
	"github.com/kittagency/ydun-scraper/internal/scraper"
)

// maxBatchURLs bounds a single submission so one request cannot occupy
// the service indefinitely.
const maxBatchURLs = 250

// BatchRunner executes a scrape batch. Implemented by batch.Orchestrator.
type BatchRunner interface {
	Run(ctx context.Context, urls []string, opts batch.RunOptions) scraper.BatchResult
}

// Server wires HTTP handlers to the batch orchestrator.
type Server struct {
	router chi.Router
	runner BatchRunner
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner BatchRunner, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner: runner,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/health", s.healthz)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/scrape", s.scrape)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// No external dependencies to probe; the pipeline is in-process.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeRequest struct {
	URLs   []string      `json:"urls"`
	Config *scrapeConfig `json:"config"`
}

// scrapeResponse is the wire envelope for a completed batch: a top-level
// success flag alongside the per-URL results and aggregate stats.
type scrapeResponse struct {
	Success bool `json:"success"`
	scraper.BatchResult
}

type scrapeConfig struct {
	MaxConcurrent int `json:"max_concurrent"`
	TimeoutPerURL int `json:"timeout_per_url"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls required")
		return
	}
	if len(req.URLs) > maxBatchURLs {
		writeError(w, http.StatusBadRequest, "too many urls in one batch")
		return
	}

	opts := batch.RunOptions{}
	if req.Config != nil {
		opts.Concurrency = req.Config.MaxConcurrent
		if req.Config.TimeoutPerURL > 0 {
			opts.PerURLTimeout = time.Duration(req.Config.TimeoutPerURL) * time.Second
		}
	}

	result := s.runner.Run(r.Context(), req.URLs, opts)
	metrics.ObserveBatch(result.Stats.Total, result.Stats.Succeeded, result.Stats.Failed)
	writeJSON(w, http.StatusOK, scrapeResponse{Success: true, BatchResult: result})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
