package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s9b/memenem-backend/internal/models"
)

func TestCacheService_SetAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := []models.Template{{TemplateID: "181913649", Name: "Drake Hotline Bling", PanelCount: 2}}
	require.NoError(t, env.cache.Set(ctx, models.CategoryTemplates, "imgflip:10", in))

	var out []models.Template
	require.NoError(t, env.cache.Get(ctx, models.CategoryTemplates, "imgflip:10", &out))
	assert.Equal(t, in, out)

	snapshot := env.metrics.GetSnapshot()
	assert.Equal(t, int64(1), snapshot["cache_hits"])
}

func TestCacheService_GetMissing(t *testing.T) {
	env := newTestEnv(t)

	var out []models.Template
	err := env.cache.Get(context.Background(), models.CategoryTemplates, "nope", &out)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, int64(1), env.metrics.GetSnapshot()["cache_misses"])
}

func TestCacheService_CaptionsExpireAfterTTL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	written := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	env.setClock(func() time.Time { return written })
	require.NoError(t, env.cache.Set(ctx, models.CategoryCaptions, "key", []string{"one"}))

	var out []string
	env.setClock(func() time.Time { return written.Add(86400*time.Second - time.Second) })
	assert.True(t, env.cache.Lookup(ctx, models.CategoryCaptions, "key", &out))

	env.setClock(func() time.Time { return written.Add(86400*time.Second + time.Second) })
	assert.False(t, env.cache.Lookup(ctx, models.CategoryCaptions, "key", &out))
}

func TestCacheService_DefaultTTLs(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, time.Hour, env.cache.TTL(models.CategoryTemplates))
	assert.Equal(t, 24*time.Hour, env.cache.TTL(models.CategoryCaptions))
	assert.Equal(t, 2*time.Hour, env.cache.TTL(models.CategoryJobs))
	assert.Equal(t, 12*time.Hour, env.cache.TTL(models.CategoryResults))
}

func TestCacheService_LastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.cache.Set(ctx, models.CategoryResults, "fp:1", "first"))
	require.NoError(t, env.cache.Set(ctx, models.CategoryResults, "fp:1", "second"))

	var out string
	require.NoError(t, env.cache.Get(ctx, models.CategoryResults, "fp:1", &out))
	assert.Equal(t, "second", out)
}

func TestCacheService_UnknownCategory(t *testing.T) {
	env := newTestEnv(t)

	err := env.cache.Set(context.Background(), models.CacheCategory("memes"), "k", 1)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCacheService_StorageFailureDegradesToMiss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.failFinds(string(models.CategoryCaptions), errStoreDown)
	env.store.failUpserts(string(models.CategoryCaptions), errStoreDown)

	var out []string
	err := env.cache.Get(ctx, models.CategoryCaptions, "key", &out)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.False(t, env.cache.Lookup(ctx, models.CategoryCaptions, "key", &out))

	// must not panic or surface the error
	env.cache.Remember(ctx, models.CategoryCaptions, "key", []string{"x"})
}

func TestCacheService_CleanupRemovesOnlyExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	env.setClock(func() time.Time { return start })
	require.NoError(t, env.cache.Set(ctx, models.CategoryTemplates, "a", 1))
	require.NoError(t, env.cache.Set(ctx, models.CategoryCaptions, "b", 2))

	env.setClock(func() time.Time { return start.Add(2 * time.Hour) })
	removed, err := env.cache.Cleanup(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), removed[models.CategoryTemplates])
	assert.Equal(t, int64(0), removed[models.CategoryCaptions])
	assert.Len(t, removed, len(models.CacheCategories))
	assert.Equal(t, 1, env.store.count(string(models.CategoryCaptions)))
}

func TestCacheService_Stats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.cache.Set(ctx, models.CategoryCaptions, "a", "hello"))
	require.NoError(t, env.cache.Set(ctx, models.CategoryCaptions, "b", "world"))

	stats, err := env.cache.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, len(models.CacheCategories))

	captions := stats[models.CategoryCaptions]
	assert.Equal(t, int64(2), captions.Count)
	assert.Equal(t, int64(14), captions.SizeBytes)
	assert.Equal(t, "14 B", captions.Size)
	assert.Equal(t, int64(86400), captions.TTLSeconds)
	assert.Equal(t, int64(0), stats[models.CategoryTemplates].Count)
}

func TestCacheService_InvalidateCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.cache.Set(ctx, models.CategoryTemplates, "a", 1))
	require.NoError(t, env.cache.Set(ctx, models.CategoryTemplates, "b", 2))
	require.NoError(t, env.cache.Set(ctx, models.CategoryCaptions, "c", 3))

	n, err := env.cache.InvalidateCategory(ctx, models.CategoryTemplates)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, env.store.count(string(models.CategoryCaptions)))

	require.NoError(t, env.cache.Invalidate(ctx, models.CategoryCaptions, "c"))
	assert.Equal(t, 0, env.store.count(string(models.CategoryCaptions)))
}
