package handler

import (
	"net/http"
	"time"

	"github.com/s9b/memenem-backend/internal/models"
)

type templatesResponse struct {
	Success   bool              `json:"success"`
	Templates []models.Template `json:"templates"`
	Count     int               `json:"count"`
}

// Templates handles GET /api/v1/templates?limit=&source=
func (h *Handler) Templates(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, h.logger, 50, 100)
	if !ok {
		return
	}
	source := models.SourceName(r.URL.Query().Get("source"))

	templates, err := h.orchestrator.Templates(r.Context(), source, limit)
	if err != nil {
		writeServiceError(w, h.logger, "failed to fetch templates", err)
		return
	}
	if templates == nil {
		templates = []models.Template{}
	}
	writeJSON(w, h.logger, http.StatusOK, templatesResponse{Success: true, Templates: templates, Count: len(templates)})
}

type cleanupResponse struct {
	Success bool                           `json:"success"`
	Message string                         `json:"message"`
	Removed map[models.CacheCategory]int64 `json:"removed"`
	Total   int64                          `json:"total"`
}

// CacheCleanup handles POST /api/v1/cache-cleanup
func (h *Handler) CacheCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cache.Cleanup(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "cache cleanup failed", err)
		return
	}

	var total int64
	for _, n := range removed {
		total += n
	}
	writeJSON(w, h.logger, http.StatusOK, cleanupResponse{
		Success: true,
		Message: "Cache cleanup finished",
		Removed: removed,
		Total:   total,
	})
}

type statsResponse struct {
	Success    bool                                          `json:"success"`
	CacheStats map[models.CacheCategory]models.CategoryStats `json:"cache_stats"`
	Timestamp  time.Time                                     `json:"timestamp"`
}

// CacheStats handles GET /api/v1/cache-stats
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "failed to get cache statistics", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, statsResponse{Success: true, CacheStats: stats, Timestamp: time.Now().UTC()})
}
