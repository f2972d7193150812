package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/metrics"
	"github.com/s9b/memenem-backend/internal/models"
	"github.com/s9b/memenem-backend/internal/repository"
)

// DefaultTTLs returns the time-to-live of each cache category.
func DefaultTTLs() map[models.CacheCategory]time.Duration {
	return map[models.CacheCategory]time.Duration{
		models.CategoryTemplates: time.Hour,
		models.CategoryCaptions:  24 * time.Hour,
		models.CategoryJobs:      2 * time.Hour,
		models.CategoryResults:   12 * time.Hour,
	}
}

// CacheService is a category-partitioned cache over a DocumentStore. Reads
// honour logical expiry, so entries past their TTL are misses even before
// Cleanup purges them.
type CacheService struct {
	store   repository.DocumentStore
	ttls    map[models.CacheCategory]time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewCacheService creates a new cache service. Categories missing from ttls
// fall back to DefaultTTLs.
func NewCacheService(store repository.DocumentStore, ttls map[models.CacheCategory]time.Duration, metrics *metrics.Metrics, logger zerolog.Logger) *CacheService {
	merged := DefaultTTLs()
	for category, ttl := range ttls {
		if ttl > 0 {
			merged[category] = ttl
		}
	}
	return &CacheService{
		store:   store,
		ttls:    merged,
		metrics: metrics,
		logger:  logger.With().Str("component", "cache").Logger(),
		now:     time.Now,
	}
}

// TTL returns the time-to-live of a category.
func (s *CacheService) TTL(category models.CacheCategory) time.Duration {
	return s.ttls[category]
}

func (s *CacheService) checkCategory(category models.CacheCategory) error {
	if _, ok := s.ttls[category]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return nil
}

// Get decodes the live entry for key into v. It returns ErrCacheMiss when
// the entry is absent or expired.
func (s *CacheService) Get(ctx context.Context, category models.CacheCategory, key string, v any) error {
	if err := s.checkCategory(category); err != nil {
		return err
	}

	doc, err := s.store.Find(ctx, string(category), key)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			s.metrics.RecordCacheLookup(string(category), false)
			return ErrCacheMiss
		}
		return storageError("cache get", err)
	}

	if doc.Expired(s.now()) {
		s.metrics.RecordCacheLookup(string(category), false)
		return ErrCacheMiss
	}

	if err := json.Unmarshal(doc.Value, v); err != nil {
		s.metrics.RecordCacheLookup(string(category), false)
		return fmt.Errorf("%w: undecodable entry %s/%s: %v", ErrCacheMiss, category, key, err)
	}

	s.metrics.RecordCacheLookup(string(category), true)
	return nil
}

// Set upserts v under key with expiry now + TTL(category).
func (s *CacheService) Set(ctx context.Context, category models.CacheCategory, key string, v any) error {
	if err := s.checkCategory(category); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	now := s.now()
	doc := &repository.Document{
		Category:  string(category),
		Key:       key,
		Value:     data,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttls[category]),
	}
	if err := s.store.Upsert(ctx, doc); err != nil {
		return storageError("cache set", err)
	}
	return nil
}

// Lookup is Get with storage failures degraded to a miss.
func (s *CacheService) Lookup(ctx context.Context, category models.CacheCategory, key string, v any) bool {
	err := s.Get(ctx, category, key, v)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("category", string(category)).Str("key", key).Msg("cache read failed, continuing without cache")
	}
	return false
}

// Remember is Set with failures logged and dropped.
func (s *CacheService) Remember(ctx context.Context, category models.CacheCategory, key string, v any) {
	if err := s.Set(ctx, category, key, v); err != nil {
		s.logger.Warn().Err(err).Str("category", string(category)).Str("key", key).Msg("cache write failed, continuing without cache")
	}
}

// Invalidate removes a single entry.
func (s *CacheService) Invalidate(ctx context.Context, category models.CacheCategory, key string) error {
	if err := s.checkCategory(category); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, string(category), key); err != nil {
		return storageError("cache invalidate", err)
	}
	return nil
}

// InvalidateCategory removes every entry of a category.
func (s *CacheService) InvalidateCategory(ctx context.Context, category models.CacheCategory) (int64, error) {
	if err := s.checkCategory(category); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteCategory(ctx, string(category))
	if err != nil {
		return 0, storageError("cache invalidate category", err)
	}
	s.logger.Info().Str("category", string(category)).Int64("removed", n).Msg("cache category invalidated")
	return n, nil
}

// Stats reports per-category counts, sizes and expiry bounds. Every known
// category is present in the result, empty ones with zero counts.
func (s *CacheService) Stats(ctx context.Context) (map[models.CacheCategory]models.CategoryStats, error) {
	raw, err := s.store.Stats(ctx, s.now())
	if err != nil {
		return nil, storageError("cache stats", err)
	}

	stats := make(map[models.CacheCategory]models.CategoryStats, len(models.CacheCategories))
	for _, category := range models.CacheCategories {
		r := raw[string(category)]
		stats[category] = models.CategoryStats{
			Count:        r.Count,
			Expired:      r.Expired,
			SizeBytes:    r.SizeBytes,
			Size:         humanize.Bytes(uint64(r.SizeBytes)),
			TTLSeconds:   int64(s.ttls[category] / time.Second),
			OldestExpiry: r.OldestExpiry,
			NewestExpiry: r.NewestExpiry,
		}
	}
	return stats, nil
}

// Cleanup purges physically stored entries that are past their expiry and
// returns the number removed per category.
func (s *CacheService) Cleanup(ctx context.Context) (map[models.CacheCategory]int64, error) {
	raw, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return nil, storageError("cache cleanup", err)
	}

	removed := make(map[models.CacheCategory]int64, len(models.CacheCategories))
	var total int64
	for _, category := range models.CacheCategories {
		removed[category] = raw[string(category)]
		total += raw[string(category)]
	}

	if total > 0 {
		s.logger.Info().Int64("removed", total).Msg("cache cleanup finished")
	}
	return removed, nil
}
