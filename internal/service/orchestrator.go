package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/models"
)

// OrchestratorConfig tunes request handling
type OrchestratorConfig struct {
	Limits Limits
	// TemplatePoolFactor multiplies max_templates to size the candidate pool
	// ranked for a request.
	TemplatePoolFactor int
}

// Orchestrator accepts generation requests and schedules their processing
type Orchestrator struct {
	jobs       *JobService
	cache      *CacheService
	processor  *BatchProcessor
	source     TemplateSource
	dispatcher *Dispatcher
	config     OrchestratorConfig
	logger     zerolog.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	jobs *JobService,
	cache *CacheService,
	processor *BatchProcessor,
	source TemplateSource,
	dispatcher *Dispatcher,
	config OrchestratorConfig,
	logger zerolog.Logger,
) *Orchestrator {
	if config.Limits.MaxTemplates < 1 || config.Limits.MaxVariations < 1 {
		config.Limits = DefaultLimits()
	}
	if config.TemplatePoolFactor < 1 {
		config.TemplatePoolFactor = 2
	}
	return &Orchestrator{
		jobs:       jobs,
		cache:      cache,
		processor:  processor,
		source:     source,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Submit validates req, resolves its templates, creates a queued job and
// schedules processing without waiting for it.
func (o *Orchestrator) Submit(ctx context.Context, req models.GenerationRequest) (*models.SubmitResult, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	req.ApplyDefaults()

	if err := ValidateRequest(&req, o.config.Limits); err != nil {
		return nil, err
	}

	templates, err := o.ResolveTemplates(ctx, req)
	if err != nil {
		// the job still gets created and fails with a readable message
		o.logger.Warn().Err(err).Str("topic", req.Topic).Msg("template resolution failed")
	}

	job, err := o.jobs.CreateJob(ctx, req)
	if err != nil {
		return nil, err
	}

	jobID := job.ID
	o.dispatcher.Go(jobID,
		func(ctx context.Context) {
			o.processor.Run(ctx, jobID, req, templates)
		},
		func(err error) {
			o.processor.Abort(jobID, err)
		},
	)

	return &models.SubmitResult{
		JobID:               jobID,
		Status:              models.StatusQueued,
		EstimatedCompletion: o.processor.Estimate(len(templates), req.VariationsPerTemplate),
	}, nil
}

// Templates returns up to limit templates from source, served from the
// templates cache when possible and sorted by popularity.
func (o *Orchestrator) Templates(ctx context.Context, source models.SourceName, limit int) ([]models.Template, error) {
	if source == "" {
		source = models.SourceImgflip
	}
	if !source.Valid() {
		return nil, &ValidationError{Err: fmt.Errorf("unknown template source %q", source)}
	}

	key := TemplatesKey(source, limit)
	var cached []models.Template
	if o.cache.Lookup(ctx, models.CategoryTemplates, key, &cached) {
		return cached, nil
	}

	templates, err := o.source.Fetch(ctx, source, limit)
	if err != nil && len(templates) == 0 {
		return nil, collaboratorError("template source", err)
	}
	if err != nil {
		o.logger.Warn().Err(err).Str("source", string(source)).Msg("partial template fetch")
	}

	templates = dedupeTemplates(templates)
	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Popularity > templates[j].Popularity
	})
	if limit > 0 && len(templates) > limit {
		templates = templates[:limit]
	}

	if len(templates) > 0 {
		o.cache.Remember(ctx, models.CategoryTemplates, key, templates)
	}
	return templates, nil
}

// ResolveTemplates picks the templates a request will be processed against:
// the pinned template when template_id is set, otherwise the most relevant
// max_templates from a larger candidate pool.
func (o *Orchestrator) ResolveTemplates(ctx context.Context, req models.GenerationRequest) ([]models.Template, error) {
	pool, err := o.Templates(ctx, req.Source, req.MaxTemplates*o.config.TemplatePoolFactor)
	if err != nil {
		return nil, err
	}

	if req.TemplateID != "" {
		for _, t := range pool {
			if t.TemplateID == req.TemplateID {
				return []models.Template{t}, nil
			}
		}
		o.logger.Info().Str("template_id", req.TemplateID).Msg("pinned template not in candidate pool, ranking instead")
	}

	return RankTemplates(req.Topic, pool, req.MaxTemplates), nil
}

// EstimateCompletionSeconds predicts the wall time of a job: a fixed start
// cost, three seconds per variation, two per batch and the rate limit delay
// between batches, padded by 20%.
func EstimateCompletionSeconds(templates, variations, batchSize int, delay time.Duration) int {
	if templates < 1 {
		return 0
	}
	if batchSize < 1 {
		batchSize = 1
	}
	batches := (templates + batchSize - 1) / batchSize
	total := 5 + float64(templates*variations)*3 + float64(batches)*2 + float64(batches-1)*delay.Seconds()
	return int(math.Round(total * 1.2))
}
