package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig holds the HTTP middleware settings
type RouterConfig struct {
	CORSOrigins []string
	// SubmitPerMinute caps job submissions per client IP; zero disables it.
	SubmitPerMinute int
	RequestTimeout  time.Duration
}

// NewRouter wires the API routes and middleware
func NewRouter(h *Handler, cfg RouterConfig, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	}))

	submitLimit := func(next http.Handler) http.Handler { return next }
	if cfg.SubmitPerMinute > 0 {
		submitLimit = httprate.Limit(cfg.SubmitPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByRealIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, logger, http.StatusTooManyRequests, "rate limit exceeded", "too many job submissions, retry later")
			}),
		)
	}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		}

		r.With(submitLimit).Post("/generate-variations", h.GenerateVariations)
		r.With(submitLimit).Post("/generate-variations-async", h.GenerateVariations)
		r.Get("/job-status/{jobID}", h.JobStatus)
		r.Get("/jobs", h.ListJobs)
		r.Get("/templates", h.Templates)
		r.Post("/cache-cleanup", h.CacheCleanup)
		r.Get("/cache-stats", h.CacheStats)
		r.Get("/metrics", h.GetMetrics)
		r.Get("/status", h.Status)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, logger, http.StatusNotFound, "route not found", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, logger, http.StatusMethodNotAllowed, "method not allowed", r.Method+" "+r.URL.Path)
	})
	return r
}
