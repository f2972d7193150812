package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/metrics"
	"github.com/s9b/memenem-backend/internal/models"
	"github.com/s9b/memenem-backend/internal/repository"
)

// maxProcessingProgress keeps progress below 100 until the job completes
const maxProcessingProgress = 99.0

// JobService owns job records and their lifecycle. Live records are kept in
// the jobs category and expire after the jobs TTL; completed jobs are also
// snapshotted into the results category so they outlive the live record.
type JobService struct {
	store     repository.DocumentStore
	cache     *CacheService
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	retention time.Duration
	now       func() time.Time
}

// NewJobService creates a new job service
func NewJobService(store repository.DocumentStore, cache *CacheService, metrics *metrics.Metrics, logger zerolog.Logger) *JobService {
	return &JobService{
		store:     store,
		cache:     cache,
		metrics:   metrics,
		logger:    logger.With().Str("component", "jobs").Logger(),
		retention: cache.TTL(models.CategoryJobs),
		now:       time.Now,
	}
}

// CreateJob writes a new queued job for req
func (s *JobService) CreateJob(ctx context.Context, req models.GenerationRequest) (*models.Job, error) {
	now := s.now()
	job := &models.Job{
		ID:        uuid.New().String(),
		Status:    models.StatusQueued,
		Progress:  0,
		Request:   req,
		Results:   []models.TemplateResult{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.metrics.IncrementSubmittedJobs()
	s.logger.Info().
		Str("job_id", job.ID).
		Str("topic", req.Topic).
		Str("style", string(req.Style)).
		Int("max_templates", req.MaxTemplates).
		Int("variations_per_template", req.VariationsPerTemplate).
		Msg("job submitted")

	return job, nil
}

// GetJob retrieves a job by ID. Jobs past their retention window report
// ErrJobNotFound.
func (s *JobService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.loadLive(ctx, id)
	if err == nil {
		return job, nil
	}

	var snapshot models.Job
	if s.cache.Lookup(ctx, models.CategoryResults, JobSnapshotKey(id), &snapshot) {
		return &snapshot, nil
	}
	return nil, err
}

// ListJobs returns up to limit live jobs, newest first
func (s *JobService) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	docs, err := s.store.List(ctx, string(models.CategoryJobs), s.now(), limit)
	if err != nil {
		return nil, storageError("list jobs", err)
	}

	jobs := make([]*models.Job, 0, len(docs))
	for _, doc := range docs {
		var job models.Job
		if err := json.Unmarshal(doc.Value, &job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", doc.Key).Msg("skipping undecodable job record")
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// MarkProcessing moves a queued job to processing. Calling it on a job that
// is already processing is a no-op.
func (s *JobService) MarkProcessing(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.loadLive(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case job.Status.IsTerminal():
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobAlreadyTerminal, id, job.Status)
	case job.Status == models.StatusProcessing:
		return job, nil
	}

	now := s.now()
	job.Status = models.StatusProcessing
	job.StartedAt = &now
	job.UpdatedAt = now
	if err := s.save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to start job: %w", err)
	}

	s.logger.Info().Str("job_id", id).Msg("job processing started")
	return job, nil
}

// AppendProgress overwrites the partial results of a processing job.
// Progress never decreases and stays below 100 until the job completes.
func (s *JobService) AppendProgress(ctx context.Context, id string, results []models.TemplateResult, skipped int, progress float64) error {
	job, err := s.loadLive(ctx, id)
	if err != nil {
		return err
	}

	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", ErrJobAlreadyTerminal, id, job.Status)
	}
	if job.Status != models.StatusProcessing {
		return fmt.Errorf("job %s is %s, not processing", id, job.Status)
	}

	if progress > maxProcessingProgress {
		progress = maxProcessingProgress
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	job.Results = results
	job.SkippedTemplates = skipped
	job.UpdatedAt = s.now()

	if err := s.save(ctx, job); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	s.logger.Debug().Str("job_id", id).Float64("progress", job.Progress).Int("results", len(results)).Msg("job progress updated")
	return nil
}

// Finalize moves a job to a terminal state exactly once. A second call
// returns ErrJobAlreadyTerminal and leaves the first outcome untouched.
func (s *JobService) Finalize(ctx context.Context, id string, status models.JobStatus, errorMessage string) (*models.Job, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("cannot finalize job %s with non-terminal status %s", id, status)
	}

	job, err := s.loadLive(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		var snapshot models.Job
		if s.cache.Lookup(ctx, models.CategoryResults, JobSnapshotKey(id), &snapshot) {
			return nil, fmt.Errorf("%w: job %s is %s", ErrJobAlreadyTerminal, id, snapshot.Status)
		}
	}
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobAlreadyTerminal, id, job.Status)
	}

	now := s.now()
	started := job.CreatedAt
	if job.StartedAt != nil {
		started = *job.StartedAt
	}

	job.Status = status
	job.UpdatedAt = now
	job.CompletedAt = &now
	job.ProcessingTime = now.Sub(started).Seconds()
	if status == models.StatusCompleted {
		job.Progress = 100
		job.ErrorMessage = ""
	} else {
		job.ErrorMessage = errorMessage
	}

	if err := s.save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to finalize job: %w", err)
	}

	if status == models.StatusCompleted {
		s.cache.Remember(ctx, models.CategoryResults, JobSnapshotKey(id), job)
		s.metrics.IncrementCompletedJobs()
		s.logger.Info().Str("job_id", id).Int("templates", len(job.Results)).Float64("processing_time", job.ProcessingTime).Msg("job completed")
	} else {
		s.metrics.IncrementFailedJobs()
		s.logger.Warn().Str("job_id", id).Str("error_message", errorMessage).Msg("job failed")
	}
	s.metrics.ObserveJobDuration(string(status), now.Sub(started))

	return job, nil
}

// loadLive reads the live record and applies logical expiry
func (s *JobService) loadLive(ctx context.Context, id string) (*models.Job, error) {
	doc, err := s.store.Find(ctx, string(models.CategoryJobs), id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, storageError("get job", err)
	}
	if doc.Expired(s.now()) {
		return nil, ErrJobNotFound
	}

	var job models.Job
	if err := json.Unmarshal(doc.Value, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

// save writes the job and refreshes its retention window
func (s *JobService) save(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	now := s.now()
	doc := &repository.Document{
		Category:  string(models.CategoryJobs),
		Key:       job.ID,
		Value:     data,
		CreatedAt: job.CreatedAt,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.retention),
	}
	if err := s.store.Upsert(ctx, doc); err != nil {
		return storageError("save job", err)
	}
	return nil
}
