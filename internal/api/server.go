package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/dictgen/internal/config"
	"github.com/JakeFAU/dictgen/internal/dictionary"
	"github.com/JakeFAU/dictgen/internal/jobs"
	"github.com/JakeFAU/dictgen/internal/metrics"
)

// JobService is the job lifecycle surface the handlers depend on.
type JobService interface {
	Submit(ctx context.Context, id string, count int) error
	Get(id string) (dictionary.JobState, error)
	Status(id string) (dictionary.Status, error)
	Result(id string) (dictionary.Histogram, error)
	Download(ctx context.Context, id string) (jobs.Download, error)
	List() []jobs.Summary
	Delete(ctx context.Context, id string) error
}

// Server wires HTTP handlers to the job manager.
type Server struct {
	router chi.Router
	jobs   JobService
	logger *zap.Logger
	ready  atomic.Bool
}

// NewServer constructs a Server with middleware and routes. The server
// reports not ready until SetReady(true) is called.
func NewServer(svc JobService, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobs:   svc,
		logger: logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
			ExposedHeaders: []string{"Content-Disposition", "ETag", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	if d := cfg.RequestTimeout(); d > 0 {
		r.Use(timeoutMiddleware(d))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/api/v1/dict", func(r chi.Router) {
			r.Get("/", s.listDictionaries)
			r.Post("/generate", s.generateDictionary)
			r.Route("/{dict_name}", func(r chi.Router) {
				r.Delete("/", s.deleteDictionary)
				r.Get("/status", s.getDictionaryStatus)
				r.Get("/statistics", s.getDictionaryStatistics)
				r.Get("/download", s.downloadDictionary)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady flips the readiness probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg, Error: true})
}
