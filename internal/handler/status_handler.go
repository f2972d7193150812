package handler

import (
	"net/http"
	"time"

	"github.com/s9b/memenem-backend/internal/models"
)

// Version is reported by the status endpoint
const Version = "1.0.0"

// StatusInfo describes the running configuration for GET /api/v1/status
type StatusInfo struct {
	Store   string
	Sources []models.SourceName
	// Breakers reports the circuit breaker state of each AI caption provider.
	Breakers func() map[string]string
}

type statusPayload struct {
	API              string              `json:"api"`
	Status           string              `json:"status"`
	Store            string              `json:"store"`
	Endpoints        map[string]string   `json:"endpoints"`
	HumorStyles      []models.HumorStyle `json:"humor_styles"`
	Sources          []models.SourceName `json:"sources"`
	CaptionProviders map[string]string   `json:"caption_providers"`
	Timestamp        time.Time           `json:"timestamp"`
}

var apiEndpoints = map[string]string{
	"generate_variations": "/api/v1/generate-variations",
	"job_status":          "/api/v1/job-status/{job_id}",
	"jobs":                "/api/v1/jobs",
	"templates":           "/api/v1/templates",
	"cache_stats":         "/api/v1/cache-stats",
	"cache_cleanup":       "/api/v1/cache-cleanup",
	"metrics":             "/api/v1/metrics",
}

// WithStatus sets what GET /api/v1/status reports
func (h *Handler) WithStatus(info StatusInfo) *Handler {
	h.status = info
	return h
}

// Status handles GET /api/v1/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	providers := map[string]string{}
	if h.status.Breakers != nil {
		providers = h.status.Breakers()
	}
	sources := h.status.Sources
	if sources == nil {
		sources = []models.SourceName{}
	}

	writeJSON(w, h.logger, http.StatusOK, statusPayload{
		API:              "MemeNem v" + Version,
		Status:           "operational",
		Store:            h.status.Store,
		Endpoints:        apiEndpoints,
		HumorStyles:      models.HumorStyles,
		Sources:          sources,
		CaptionProviders: providers,
		Timestamp:        time.Now().UTC(),
	})
}
