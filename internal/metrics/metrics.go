package metrics

import (
	"sync"
	"time"
)

// Metrics tracks system metrics. Every increment is mirrored to the
// Prometheus collectors in prometheus.go.
type Metrics struct {
	mu sync.RWMutex

	submittedJobs       int64
	completedJobs       int64
	failedJobs          int64
	skippedTemplates    int64
	variationsGenerated int64
	variationsFailed    int64
	cacheHits           int64
	cacheMisses         int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncrementSubmittedJobs increments the submitted jobs counter
func (m *Metrics) IncrementSubmittedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submittedJobs++
	jobsTotal.WithLabelValues("submitted").Inc()
}

// IncrementCompletedJobs increments the completed jobs counter
func (m *Metrics) IncrementCompletedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedJobs++
	jobsTotal.WithLabelValues("completed").Inc()
}

// IncrementFailedJobs increments the failed jobs counter
func (m *Metrics) IncrementFailedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedJobs++
	jobsTotal.WithLabelValues("failed").Inc()
}

// AddSkippedTemplates adds n templates that produced no variation
func (m *Metrics) AddSkippedTemplates(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skippedTemplates += int64(n)
	templatesSkipped.Add(float64(n))
}

// IncrementVariations records the outcome of one variation attempt
func (m *Metrics) IncrementVariations(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.variationsGenerated++
		variationsTotal.WithLabelValues("generated").Inc()
		return
	}
	m.variationsFailed++
	variationsTotal.WithLabelValues("failed").Inc()
}

// RecordCacheLookup records a hit or miss for a cache category
func (m *Metrics) RecordCacheLookup(category string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
		cacheLookups.WithLabelValues(category, "hit").Inc()
		return
	}
	m.cacheMisses++
	cacheLookups.WithLabelValues(category, "miss").Inc()
}

// ObserveLimiterWait records how long a caller waited for the rate limiter
func (m *Metrics) ObserveLimiterWait(d time.Duration) {
	limiterWait.Observe(d.Seconds())
}

// ObserveJobDuration records the processing time of a finished job
func (m *Metrics) ObserveJobDuration(status string, d time.Duration) {
	jobDuration.WithLabelValues(status).Observe(d.Seconds())
}

// GetSnapshot returns a snapshot of all metrics
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"submitted_jobs":       m.submittedJobs,
		"completed_jobs":       m.completedJobs,
		"failed_jobs":          m.failedJobs,
		"skipped_templates":    m.skippedTemplates,
		"variations_generated": m.variationsGenerated,
		"variations_failed":    m.variationsFailed,
		"cache_hits":           m.cacheHits,
		"cache_misses":         m.cacheMisses,
	}
}
