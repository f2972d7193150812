package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMirrorsCounters(t *testing.T) {
	submitted := testutil.ToFloat64(jobsTotal.WithLabelValues("submitted"))
	failed := testutil.ToFloat64(variationsTotal.WithLabelValues("failed"))
	misses := testutil.ToFloat64(cacheLookups.WithLabelValues("jobs", "miss"))
	skipped := testutil.ToFloat64(templatesSkipped)

	m := NewMetrics()
	m.IncrementSubmittedJobs()
	m.IncrementVariations(false)
	m.RecordCacheLookup("jobs", false)
	m.AddSkippedTemplates(3)

	assert.Equal(t, submitted+1, testutil.ToFloat64(jobsTotal.WithLabelValues("submitted")))
	assert.Equal(t, failed+1, testutil.ToFloat64(variationsTotal.WithLabelValues("failed")))
	assert.Equal(t, misses+1, testutil.ToFloat64(cacheLookups.WithLabelValues("jobs", "miss")))
	assert.Equal(t, skipped+3, testutil.ToFloat64(templatesSkipped))
}

func TestBreakerStateGauge(t *testing.T) {
	BreakerState.WithLabelValues("test-provider").Set(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(BreakerState.WithLabelValues("test-provider")))
}
