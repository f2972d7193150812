package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/s9b/memenem-backend/internal/metrics"
	"github.com/s9b/memenem-backend/internal/models"
)

// BatchConfig controls how templates are grouped and how many groups run at once
type BatchConfig struct {
	BatchSize            int
	MaxConcurrentBatches int
}

// DefaultBatchConfig returns batches of two templates run one at a time.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{BatchSize: 2, MaxConcurrentBatches: 1}
}

// BatchProcessor drives one job from processing to a terminal state
type BatchProcessor struct {
	jobs     *JobService
	cache    *CacheService
	limiter  *RateLimiter
	captions CaptionGenerator
	scorer   ViralityScorer
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	config   BatchConfig
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(
	jobs *JobService,
	cache *CacheService,
	limiter *RateLimiter,
	captions CaptionGenerator,
	scorer ViralityScorer,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
	config BatchConfig,
) *BatchProcessor {
	if config.BatchSize < 1 {
		config.BatchSize = DefaultBatchConfig().BatchSize
	}
	if config.MaxConcurrentBatches < 1 {
		config.MaxConcurrentBatches = DefaultBatchConfig().MaxConcurrentBatches
	}
	return &BatchProcessor{
		jobs:     jobs,
		cache:    cache,
		limiter:  limiter,
		captions: captions,
		scorer:   scorer,
		metrics:  metrics,
		logger:   logger.With().Str("component", "batch").Logger(),
		config:   config,
	}
}

// Run processes templates for a job and finalizes it. Any panic or fatal
// error ends in a failed job; nothing escapes to the caller.
func (p *BatchProcessor) Run(ctx context.Context, jobID string, req models.GenerationRequest, templates []models.Template) {
	// terminal writes must land even when ctx is canceled
	finalCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("job_id", jobID).Interface("panic", r).Msg("job processing panicked")
			p.fail(finalCtx, jobID, fmt.Sprintf("internal error during processing: %v", r))
		}
	}()

	if _, err := p.jobs.MarkProcessing(ctx, jobID); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to start job")
		if !errors.Is(err, ErrJobAlreadyTerminal) && !errors.Is(err, ErrJobNotFound) {
			p.fail(finalCtx, jobID, fmt.Sprintf("failed to start processing: %v", err))
		}
		return
	}

	if len(templates) == 0 {
		p.fail(finalCtx, jobID, fmt.Sprintf("no suitable templates found for topic %q", req.Topic))
		return
	}

	fingerprint := RequestFingerprint(req, templates)

	var cached []models.TemplateResult
	if p.cache.Lookup(ctx, models.CategoryResults, fingerprint, &cached) && len(cached) > 0 {
		p.logger.Info().Str("job_id", jobID).Str("fingerprint", fingerprint).Msg("serving results from cache")
		if err := p.jobs.AppendProgress(ctx, jobID, cached, 0, maxProcessingProgress); err != nil {
			p.fail(finalCtx, jobID, fmt.Sprintf("failed to store cached results: %v", err))
			return
		}
		p.complete(finalCtx, jobID, fingerprint, cached, 0)
		return
	}

	results, skipped, err := p.process(ctx, jobID, req, templates)
	p.metrics.AddSkippedTemplates(skipped)
	if err != nil {
		p.fail(finalCtx, jobID, fmt.Sprintf("processing aborted: %v", err))
		return
	}

	if len(results) == 0 {
		p.fail(finalCtx, jobID, fmt.Sprintf("caption generation failed for all %d templates", len(templates)))
		return
	}

	p.complete(finalCtx, jobID, fingerprint, results, skipped)
}

// Estimate predicts how many seconds a job of this shape will take
func (p *BatchProcessor) Estimate(templates, variations int) int {
	return EstimateCompletionSeconds(templates, variations, p.config.BatchSize, p.limiter.Delay())
}

// Abort fails a job whose background unit could not start.
func (p *BatchProcessor) Abort(jobID string, cause error) {
	p.fail(context.Background(), jobID, fmt.Sprintf("processing not started: %v", cause))
}

func (p *BatchProcessor) complete(ctx context.Context, jobID, fingerprint string, results []models.TemplateResult, skipped int) {
	if _, err := p.jobs.Finalize(ctx, jobID, models.StatusCompleted, ""); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to complete job")
		if !errors.Is(err, ErrJobAlreadyTerminal) {
			p.fail(ctx, jobID, fmt.Sprintf("failed to complete job: %v", err))
		}
		return
	}
	p.cache.Remember(ctx, models.CategoryResults, fingerprint, results)
	if skipped > 0 {
		p.logger.Info().Str("job_id", jobID).Int("skipped_templates", skipped).Msg("job completed with skipped templates")
	}
}

func (p *BatchProcessor) fail(ctx context.Context, jobID, message string) {
	if _, err := p.jobs.Finalize(ctx, jobID, models.StatusFailed, message); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job failed")
	}
}

// partition splits templates into ordered batches of size n
func partition(templates []models.Template, n int) [][]models.Template {
	var batches [][]models.Template
	for start := 0; start < len(templates); start += n {
		end := start + n
		if end > len(templates) {
			end = len(templates)
		}
		batches = append(batches, templates[start:end])
	}
	return batches
}

// progressTracker commits finished templates to the job in input order
type progressTracker struct {
	mu        sync.Mutex
	jobs      *JobService
	jobID     string
	total     int
	finished  []bool
	slots     []*models.TemplateResult
	next      int
	results   []models.TemplateResult
	processed int
	skipped   int
}

// finish records template i (nil when skipped) and persists progress
func (t *progressTracker) finish(ctx context.Context, i int, result *models.TemplateResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.finished[i] = true
	t.slots[i] = result
	t.processed++
	if result == nil {
		t.skipped++
	}

	for t.next < t.total && t.finished[t.next] {
		if r := t.slots[t.next]; r != nil {
			t.results = append(t.results, *r)
		}
		t.next++
	}

	snapshot := make([]models.TemplateResult, len(t.results))
	copy(snapshot, t.results)
	progress := 100 * float64(t.processed) / float64(t.total)

	return t.jobs.AppendProgress(ctx, t.jobID, snapshot, t.skipped, progress)
}

// process runs every batch and returns the surviving results in input order.
// The returned error is fatal to the job.
func (p *BatchProcessor) process(ctx context.Context, jobID string, req models.GenerationRequest, templates []models.Template) ([]models.TemplateResult, int, error) {
	tracker := &progressTracker{
		jobs:     p.jobs,
		jobID:    jobID,
		total:    len(templates),
		finished: make([]bool, len(templates)),
		slots:    make([]*models.TemplateResult, len(templates)),
		results:  make([]models.TemplateResult, 0, len(templates)),
	}

	batches := partition(templates, p.config.BatchSize)
	p.logger.Info().
		Str("job_id", jobID).
		Int("templates", len(templates)).
		Int("batches", len(batches)).
		Msg("processing batches")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxConcurrentBatches)

	for b, batch := range batches {
		offset := b * p.config.BatchSize
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error().Str("job_id", jobID).Int("batch", b+1).Interface("panic", r).Msg("batch panicked")
					err = fmt.Errorf("batch %d panicked: %v", b+1, r)
				}
			}()
			for j, tmpl := range batch {
				result, err := p.processTemplate(gctx, jobID, req, tmpl)
				if err != nil {
					return err
				}
				if err := tracker.finish(gctx, offset+j, result); err != nil {
					return err
				}
			}
			p.logger.Debug().Str("job_id", jobID).Int("batch", b+1).Int("of", len(batches)).Msg("batch finished")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, tracker.skipped, err
	}
	return tracker.results, tracker.skipped, nil
}

// processTemplate generates the variations of one template. A nil result
// means every variation failed. Only context cancellation is returned as an
// error.
func (p *BatchProcessor) processTemplate(ctx context.Context, jobID string, req models.GenerationRequest, tmpl models.Template) (*models.TemplateResult, error) {
	log := p.logger.With().Str("job_id", jobID).Str("template_id", tmpl.TemplateID).Logger()

	captionsKey := CaptionsKey(req.Topic, req.Style, tmpl.TemplateID, req.VariationsPerTemplate)
	var cached []models.Variation
	if p.cache.Lookup(ctx, models.CategoryCaptions, captionsKey, &cached) && len(cached) > 0 {
		log.Debug().Int("variations", len(cached)).Msg("using cached variations")
		result := models.NewTemplateResult(tmpl, cached)
		return &result, nil
	}

	variations := make([]models.Variation, 0, req.VariationsPerTemplate)
	for i := 0; i < req.VariationsPerTemplate; i++ {
		v, err := p.generateVariation(ctx, req, tmpl, len(variations)+1)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.metrics.IncrementVariations(false)
			log.Warn().Err(err).Int("attempt", i+1).Msg("variation failed, skipping")
			continue
		}
		p.metrics.IncrementVariations(true)
		variations = append(variations, v)
	}

	if len(variations) == 0 {
		log.Warn().Int("attempts", req.VariationsPerTemplate).Msg("all variations failed, skipping template")
		return nil, nil
	}

	p.cache.Remember(ctx, models.CategoryCaptions, captionsKey, variations)

	result := models.NewTemplateResult(tmpl, variations)
	log.Info().Int("variations", len(variations)).Float64("average_virality_score", result.AverageViralityScore).Msg("template processed")
	return &result, nil
}

// generateVariation produces one scored variation. Collaborator panics are
// converted to errors here so they only cost this variation.
func (p *BatchProcessor) generateVariation(ctx context.Context, req models.GenerationRequest, tmpl models.Template, id int) (v models.Variation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCollaboratorFailure, r)
		}
	}()

	// one slot per variation; a caption chain that falls through to a backup
	// provider spends both calls inside this slot
	waitStart := time.Now()
	if err := p.limiter.Acquire(ctx); err != nil {
		return v, err
	}
	p.metrics.ObserveLimiterWait(time.Since(waitStart))

	set, err := p.captions.Generate(ctx, req.Topic, req.Style, tmpl)
	if err != nil {
		return v, collaboratorError("caption generation", err)
	}
	if err := checkCaptions(tmpl, set); err != nil {
		return v, collaboratorError("caption generation", err)
	}

	score, err := p.scorer.Score(ctx, tmpl, set.Captions, req.Style, req.Topic)
	if err != nil {
		return v, collaboratorError("virality scoring", err)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return v, collaboratorError("virality scoring", fmt.Errorf("invalid score %v", score))
	}
	score = math.Max(0, math.Min(100, score))

	metadata := map[string]any{
		"method":       set.Method,
		"style":        string(req.Style),
		"topic":        req.Topic,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if len(set.Keywords) > 0 {
		metadata["keywords"] = set.Keywords
	}

	return models.Variation{
		VariationID:   id,
		Captions:      set.Captions,
		ViralityScore: math.Round(score*100) / 100,
		Metadata:      metadata,
	}, nil
}

// checkCaptions verifies there is exactly one caption per panel
func checkCaptions(tmpl models.Template, set *models.CaptionSet) error {
	if set == nil {
		return errors.New("no captions returned")
	}
	keys := tmpl.PanelKeys()
	if len(set.Captions) != len(keys) {
		return fmt.Errorf("expected %d captions, got %d", len(keys), len(set.Captions))
	}
	for _, k := range keys {
		if _, ok := set.Captions[k]; !ok {
			return fmt.Errorf("missing caption for %s", k)
		}
	}
	return nil
}
