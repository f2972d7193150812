package providers

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/s9b/memenem-backend/internal/metrics"
	"github.com/s9b/memenem-backend/internal/models"
)

// Captioner is a single caption backend
type Captioner interface {
	Name() string
	Generate(ctx context.Context, topic string, style models.HumorStyle, tmpl models.Template) (*models.CaptionSet, error)
}

// BreakerConfig tunes the circuit breaker guarding each AI captioner
type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Interval         time.Duration
	// CallTimeout bounds a single provider call; zero leaves it to ctx.
	CallTimeout time.Duration
}

// DefaultBreakerConfig trips after three consecutive failures and probes
// again after a minute.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 3,
	OpenTimeout:      time.Minute,
	Interval:         5 * time.Minute,
}

type guardedCaptioner struct {
	captioner Captioner
	breaker   *gobreaker.CircuitBreaker[*models.CaptionSet]
	timeout   time.Duration
}

// CaptionChain tries each AI captioner in order behind its own circuit
// breaker and falls back to canned phrases when all of them fail.
type CaptionChain struct {
	links    []guardedCaptioner
	fallback Captioner
	logger   zerolog.Logger
}

// NewCaptionChain creates a chain over captioners. fallback must not fail;
// a nil fallback uses a PhraseCaptioner.
func NewCaptionChain(cfg BreakerConfig, fallback Captioner, logger zerolog.Logger, captioners ...Captioner) *CaptionChain {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerConfig.OpenTimeout
	}
	if fallback == nil {
		fallback = NewPhraseCaptioner(nil)
	}

	c := &CaptionChain{
		fallback: fallback,
		logger:   logger.With().Str("component", "captions").Logger(),
	}
	for _, captioner := range captioners {
		c.links = append(c.links, guardedCaptioner{
			captioner: captioner,
			breaker:   c.newBreaker(captioner.Name(), cfg),
			timeout:   cfg.CallTimeout,
		})
		metrics.BreakerState.WithLabelValues(captioner.Name()).Set(0)
	}
	return c
}

func (c *CaptionChain) newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[*models.CaptionSet] {
	threshold := cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker[*models.CaptionSet](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// a canceled job says nothing about the provider
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(breakerGauge(to))
			c.logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("caption provider breaker changed state")
		},
	})
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// Providers lists the AI captioners in the order they are tried
func (c *CaptionChain) Providers() []string {
	names := make([]string, 0, len(c.links))
	for _, l := range c.links {
		names = append(names, l.captioner.Name())
	}
	return names
}

// BreakerStates reports the breaker state of every AI captioner
func (c *CaptionChain) BreakerStates() map[string]string {
	states := make(map[string]string, len(c.links))
	for _, l := range c.links {
		states[l.captioner.Name()] = l.breaker.State().String()
	}
	return states
}

func (c *CaptionChain) Generate(ctx context.Context, topic string, style models.HumorStyle, tmpl models.Template) (*models.CaptionSet, error) {
	for _, l := range c.links {
		set, err := l.breaker.Execute(func() (*models.CaptionSet, error) {
			callCtx := ctx
			if l.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, l.timeout)
				defer cancel()
			}
			return l.captioner.Generate(callCtx, topic, style, tmpl)
		})
		if err == nil {
			return set, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		event := c.logger.Debug()
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			event = c.logger.Warn()
		}
		event.Err(err).
			Str("provider", l.captioner.Name()).
			Str("template_id", tmpl.TemplateID).
			Msg("caption provider failed, trying next")
	}
	return c.fallback.Generate(ctx, topic, style, tmpl)
}
