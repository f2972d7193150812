package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/metrics"
	"github.com/s9b/memenem-backend/internal/models"
	"github.com/s9b/memenem-backend/internal/service"
)

const maxRequestBytes = 1 << 20

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the generation API
type Handler struct {
	orchestrator *service.Orchestrator
	jobs         *service.JobService
	cache        *service.CacheService
	metrics      *metrics.Metrics
	store        Pinger
	status       StatusInfo
	logger       zerolog.Logger
}

// NewHandler creates a new API handler
func NewHandler(orchestrator *service.Orchestrator, jobs *service.JobService, cache *service.CacheService, metrics *metrics.Metrics, store Pinger, logger zerolog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		jobs:         jobs,
		cache:        cache,
		metrics:      metrics,
		store:        store,
		logger:       logger.With().Str("component", "http").Logger(),
	}
}

type submitResponse struct {
	Success                 bool             `json:"success"`
	JobID                   string           `json:"job_id"`
	Status                  models.JobStatus `json:"status"`
	EstimatedCompletionTime int              `json:"estimated_completion_time"`
	Message                 string           `json:"message"`
}

// GenerateVariations handles POST /api/v1/generate-variations
func (h *Handler) GenerateVariations(w http.ResponseWriter, r *http.Request) {
	var req models.GenerationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.orchestrator.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "job submission failed", err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, submitResponse{
		Success:                 true,
		JobID:                   result.JobID,
		Status:                  result.Status,
		EstimatedCompletionTime: result.EstimatedCompletion,
		Message:                 "Job queued. Poll /api/v1/job-status/" + result.JobID + " for results.",
	})
}

type pendingResponse struct {
	Success   bool                    `json:"success"`
	JobID     string                  `json:"job_id"`
	Status    models.JobStatus        `json:"status"`
	Progress  float64                 `json:"progress"`
	Templates []models.TemplateResult `json:"templates"`
	Count     int                     `json:"count"`
}

type completedResponse struct {
	Success          bool                    `json:"success"`
	JobID            string                  `json:"job_id"`
	Status           models.JobStatus        `json:"status"`
	Progress         float64                 `json:"progress"`
	Templates        []models.TemplateResult `json:"templates"`
	Count            int                     `json:"count"`
	CompletedAt      time.Time               `json:"completed_at"`
	ProcessingTime   float64                 `json:"processing_time"`
	SkippedTemplates int                     `json:"skipped_templates"`
}

type failedResponse struct {
	Success      bool             `json:"success"`
	JobID        string           `json:"job_id"`
	Status       models.JobStatus `json:"status"`
	ErrorMessage string           `json:"error_message"`
}

func statusResponse(view models.JobView) any {
	switch v := view.(type) {
	case models.CompletedJob:
		return completedResponse{
			Success:          true,
			JobID:            v.JobID,
			Status:           models.StatusCompleted,
			Progress:         100,
			Templates:        v.Templates,
			Count:            len(v.Templates),
			CompletedAt:      v.CompletedAt,
			ProcessingTime:   v.ProcessingTime,
			SkippedTemplates: v.Skipped,
		}
	case models.FailedJob:
		return failedResponse{
			JobID:        v.JobID,
			Status:       models.StatusFailed,
			ErrorMessage: v.ErrorMessage,
		}
	case models.PendingJob:
		return pendingResponse{
			Success:   true,
			JobID:     v.JobID,
			Status:    v.State,
			Progress:  v.Progress,
			Templates: []models.TemplateResult{},
		}
	}
	return nil
}

// JobStatus handles GET /api/v1/job-status/{jobID}
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "job id is required", "")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, h.logger, "failed to retrieve job", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, statusResponse(job.View()))
}

type jobListResponse struct {
	Success bool                `json:"success"`
	Jobs    []models.JobSummary `json:"jobs"`
	Count   int                 `json:"count"`
}

// ListJobs handles GET /api/v1/jobs?limit=
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, h.logger, 10, 20)
	if !ok {
		return
	}

	jobs, err := h.jobs.ListJobs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, "failed to list jobs", err)
		return
	}

	summaries := make([]models.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, job.Summary())
	}
	writeJSON(w, h.logger, http.StatusOK, jobListResponse{Success: true, Jobs: summaries, Count: len(summaries)})
}

// GetMetrics handles GET /api/v1/metrics
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.metrics.GetSnapshot())
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("health check failed")
		writeError(w, h.logger, http.StatusServiceUnavailable, "store unreachable", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

// queryLimit parses the limit query parameter. It writes a 400 and returns
// false when the value is not an integer in [1, max].
func queryLimit(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, def, max int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > max {
		writeError(w, logger, http.StatusBadRequest, "invalid limit", "limit must be an integer between 1 and "+strconv.Itoa(max))
		return 0, false
	}
	return limit, true
}
