package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultJanitorInterval is how often expired cache entries are purged
const DefaultJanitorInterval = 10 * time.Minute

// Janitor periodically removes expired entries from the cache store
type Janitor struct {
	cache    *CacheService
	interval time.Duration
	logger   zerolog.Logger
}

// NewJanitor creates a new janitor
func NewJanitor(cache *CacheService, interval time.Duration, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &Janitor{
		cache:    cache,
		interval: interval,
		logger:   logger.With().Str("component", "janitor").Logger(),
	}
}

// Run sweeps once immediately and then on every tick until ctx is canceled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info().Dur("interval", j.interval).Msg("janitor started")
	for {
		j.Sweep(ctx)

		select {
		case <-ctx.Done():
			j.logger.Info().Msg("janitor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep runs a single cleanup and returns the total number of removed entries
func (j *Janitor) Sweep(ctx context.Context) int64 {
	removed, err := j.cache.Cleanup(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("cache cleanup failed")
		return 0
	}

	var total int64
	event := j.logger.Debug()
	for category, n := range removed {
		total += n
		event = event.Int64(string(category), n)
	}
	event.Int64("total", total).Msg("sweep finished")
	return total
}
