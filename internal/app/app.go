package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/config"
	"github.com/s9b/memenem-backend/internal/handler"
	"github.com/s9b/memenem-backend/internal/metrics"
	"github.com/s9b/memenem-backend/internal/models"
	"github.com/s9b/memenem-backend/internal/providers"
	"github.com/s9b/memenem-backend/internal/repository"
	"github.com/s9b/memenem-backend/internal/service"
)

// App holds the wired services of one process
type App struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Store        repository.DocumentStore
	Metrics      *metrics.Metrics
	Cache        *service.CacheService
	Jobs         *service.JobService
	Dispatcher   *service.Dispatcher
	Orchestrator *service.Orchestrator
	Janitor      *service.Janitor
	Captions     *providers.CaptionChain
	Sources      *providers.MultiSource
}

// OpenStore connects the configured document store backend
func OpenStore(cfg config.StoreConfig) (repository.DocumentStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return repository.NewSQLiteRepository(cfg.SQLitePath)
	case "valkey":
		return repository.NewValkeyRepository(repository.ValkeyConfig{
			Address:   cfg.ValkeyAddr,
			Password:  cfg.ValkeyPass,
			DB:        cfg.ValkeyDB,
			KeyPrefix: cfg.ValkeyPrefix,
		})
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// TTLs returns the cache category TTLs from cfg
func TTLs(cfg config.CacheConfig) map[models.CacheCategory]time.Duration {
	return map[models.CacheCategory]time.Duration{
		models.CategoryTemplates: cfg.TemplatesTTL,
		models.CategoryCaptions:  cfg.CaptionsTTL,
		models.CategoryJobs:      cfg.JobsTTL,
		models.CategoryResults:   cfg.ResultsTTL,
	}
}

// NewCacheOnly wires just the store and cache, for maintenance commands
func NewCacheOnly(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	store, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	m := metrics.NewMetrics()
	cache := service.NewCacheService(store, TTLs(cfg.Cache), m, logger)
	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Metrics: m,
		Cache:   cache,
		Janitor: service.NewJanitor(cache, cfg.Janitor.Interval, logger),
	}, nil
}

// New wires the full generation pipeline
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a, err := NewCacheOnly(cfg, logger)
	if err != nil {
		return nil, err
	}

	source, err := newTemplateSource(cfg.Sources, logger)
	if err != nil {
		a.Store.Close()
		return nil, err
	}
	chain, err := newCaptionChain(ctx, cfg.AI, logger)
	if err != nil {
		a.Store.Close()
		return nil, err
	}

	a.Captions = chain
	a.Sources = source
	a.Jobs = service.NewJobService(a.Store, a.Cache, a.Metrics, logger)
	a.Dispatcher = service.NewDispatcher(int64(cfg.Processing.MaxConcurrentJobs), logger)

	processor := service.NewBatchProcessor(
		a.Jobs,
		a.Cache,
		service.NewRateLimiter(cfg.Processing.RateLimitDelay),
		chain,
		providers.NewHeuristicScorer(),
		a.Metrics,
		logger,
		service.BatchConfig{
			BatchSize:            cfg.Processing.BatchSize,
			MaxConcurrentBatches: cfg.Processing.MaxConcurrentBatches,
		},
	)

	a.Orchestrator = service.NewOrchestrator(
		a.Jobs,
		a.Cache,
		processor,
		source,
		a.Dispatcher,
		service.OrchestratorConfig{
			Limits: service.Limits{
				MaxTemplates:  cfg.Limits.MaxTemplates,
				MaxVariations: cfg.Limits.MaxVariations,
			},
			TemplatePoolFactor: cfg.Processing.TemplatePoolFactor,
		},
		logger,
	)
	return a, nil
}

// Router builds the HTTP handler for the API
func (a *App) Router() http.Handler {
	h := handler.NewHandler(a.Orchestrator, a.Jobs, a.Cache, a.Metrics, a.Store, a.Logger).
		WithStatus(handler.StatusInfo{
			Store:    a.Config.Store.Backend,
			Sources:  a.Sources.Sources(),
			Breakers: a.Captions.BreakerStates,
		})
	return handler.NewRouter(h, handler.RouterConfig{
		CORSOrigins:     a.Config.HTTP.CORSOrigins,
		SubmitPerMinute: a.Config.HTTP.SubmitPerMinute,
		RequestTimeout:  a.Config.HTTP.RequestTimeout,
	}, a.Logger)
}

// Shutdown waits for in-flight jobs and closes the store
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Dispatcher != nil {
		if err := a.Dispatcher.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher: %w", err))
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}

func newTemplateSource(cfg config.SourcesConfig, logger zerolog.Logger) (*providers.MultiSource, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	var fetchers []providers.TemplateFetcher
	for _, name := range cfg.Enabled {
		switch models.SourceName(name) {
		case models.SourceImgflip:
			fetchers = append(fetchers, providers.NewImgflipSource(cfg.ImgflipURL, client, cfg.RequestsPerSecond, cfg.UserAgent, logger))
		case models.SourceReddit:
			fetchers = append(fetchers, providers.NewRedditSource(cfg.RedditURL, cfg.Subreddits, client, cfg.RequestsPerSecond, cfg.UserAgent, logger))
		case models.SourceKnowYourMeme:
			fetchers = append(fetchers, providers.NewKnowYourMemeSource(cfg.KnowYourMemeURL, nil, client, cfg.RequestsPerSecond, cfg.UserAgent, logger))
		default:
			return nil, fmt.Errorf("unknown template source %q", name)
		}
	}
	return providers.NewMultiSource(logger, fetchers...), nil
}

// newCaptionChain builds the AI captioners that have credentials, in the
// configured order. Without any, captions come from the phrase fallback.
func newCaptionChain(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) (*providers.CaptionChain, error) {
	var captioners []providers.Captioner
	for _, name := range cfg.Providers {
		switch name {
		case "gemini":
			if cfg.GeminiAPIKey == "" {
				logger.Warn().Msg("gemini api key not set, provider disabled")
				continue
			}
			c, err := providers.NewGeminiCaptioner(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "")
			if err != nil {
				return nil, fmt.Errorf("failed to create gemini captioner: %w", err)
			}
			captioners = append(captioners, c)
		case "openai":
			if cfg.OpenAIAPIKey == "" {
				logger.Warn().Msg("openai api key not set, provider disabled")
				continue
			}
			c, err := providers.NewOpenAICaptioner(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to create openai captioner: %w", err)
			}
			captioners = append(captioners, c)
		default:
			return nil, fmt.Errorf("unknown caption provider %q", name)
		}
	}

	breaker := providers.DefaultBreakerConfig
	breaker.CallTimeout = cfg.Timeout
	if cfg.BreakerThreshold > 0 {
		breaker.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerTimeout > 0 {
		breaker.OpenTimeout = cfg.BreakerTimeout
	}
	return providers.NewCaptionChain(breaker, nil, logger, captioners...), nil
}
