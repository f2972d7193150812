package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s9b/memenem-backend/internal/models"
)

func TestJanitor_Sweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	env.setClock(func() time.Time { return start })
	require.NoError(t, env.cache.Set(ctx, models.CategoryTemplates, "a", 1))
	require.NoError(t, env.cache.Set(ctx, models.CategoryTemplates, "b", 2))
	require.NoError(t, env.cache.Set(ctx, models.CategoryResults, "c", 3))

	env.setClock(func() time.Time { return start.Add(90 * time.Minute) })
	j := NewJanitor(env.cache, time.Minute, zerolog.Nop())

	assert.Equal(t, int64(2), j.Sweep(ctx))
	assert.Equal(t, int64(0), j.Sweep(ctx))
	assert.Equal(t, 1, env.store.count(string(models.CategoryResults)))
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	j := NewJanitor(env.cache, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
