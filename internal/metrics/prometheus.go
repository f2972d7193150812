package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memenem_jobs_total",
			Help: "Generation jobs by lifecycle event",
		},
		[]string{"event"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memenem_job_duration_seconds",
			Help:    "Wall time from job start to terminal state",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	variationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memenem_variations_total",
			Help: "Caption variation attempts by outcome",
		},
		[]string{"outcome"},
	)

	templatesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memenem_templates_skipped_total",
			Help: "Templates excluded because every variation failed",
		},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memenem_cache_lookups_total",
			Help: "Cache lookups by category and result",
		},
		[]string{"category", "result"},
	)

	limiterWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memenem_rate_limiter_wait_seconds",
			Help:    "Time spent blocked in the caption rate limiter",
			Buckets: []float64{0, 0.1, 0.5, 1, 2, 4, 8, 16},
		},
	)

	// BreakerState reports circuit breaker state per provider (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memenem_breaker_state",
			Help: "Circuit breaker state per caption provider",
		},
		[]string{"provider"},
	)
)
