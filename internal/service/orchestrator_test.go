package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s9b/memenem-backend/internal/models"
)

func newTestOrchestrator(t *testing.T, env *testEnv, source *fakeSource, captions CaptionGenerator) *Orchestrator {
	t.Helper()
	dispatcher := NewDispatcher(4, zerolog.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Shutdown(ctx)
	})
	processor := env.processor(captions, &fakeScorer{score: 64.5}, 2*time.Millisecond, DefaultBatchConfig())
	return NewOrchestrator(env.jobs, env.cache, processor, source, dispatcher, OrchestratorConfig{}, zerolog.Nop())
}

func waitForTerminal(t *testing.T, env *testEnv, jobID string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		got, err := env.jobs.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = got
		return got.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestOrchestrator_Submit_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	source := &fakeSource{templates: sampleTemplates(6)}
	o := newTestOrchestrator(t, env, source, &fakeCaptioner{})

	result, err := o.Submit(context.Background(), models.GenerationRequest{
		Topic:                 "Monday morning meetings",
		Style:                 models.StyleSarcastic,
		MaxTemplates:          2,
		VariationsPerTemplate: 2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, models.StatusQueued, result.Status)
	assert.Positive(t, result.EstimatedCompletion)

	job := waitForTerminal(t, env, result.JobID)
	require.Equal(t, models.StatusCompleted, job.Status)
	assert.Equal(t, 100.0, job.Progress)
	assert.Greater(t, job.ProcessingTime, 0.0)
	assert.Equal(t, models.SourceImgflip, job.Request.Source)

	require.GreaterOrEqual(t, len(job.Results), 1)
	require.LessOrEqual(t, len(job.Results), 2)
	for _, r := range job.Results {
		require.GreaterOrEqual(t, len(r.Variations), 1)
		require.LessOrEqual(t, len(r.Variations), 2)
		for _, v := range r.Variations {
			keys := make([]string, 0, len(v.Captions))
			for k := range v.Captions {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, r.PanelKeys(), keys)
		}
	}
}

func TestOrchestrator_Submit_ValidationErrorCreatesNoJob(t *testing.T) {
	env := newTestEnv(t)
	source := &fakeSource{templates: sampleTemplates(3)}
	o := newTestOrchestrator(t, env, source, &fakeCaptioner{})

	req := sampleRequest()
	req.MaxTemplates = 999

	result, err := o.Submit(context.Background(), req)
	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields(), "max_templates")

	assert.Equal(t, 0, env.store.count(string(models.CategoryJobs)))
	assert.Equal(t, 0, source.calls)
}

func TestOrchestrator_Submit_StorageFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.failUpserts(string(models.CategoryJobs), errStoreDown)
	o := newTestOrchestrator(t, env, &fakeSource{templates: sampleTemplates(3)}, &fakeCaptioner{})

	_, err := o.Submit(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestOrchestrator_Submit_SourceDownFailsJob(t *testing.T) {
	env := newTestEnv(t)
	o := newTestOrchestrator(t, env, &fakeSource{err: errors.New("imgflip 503")}, &fakeCaptioner{})

	result, err := o.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)

	job := waitForTerminal(t, env, result.JobID)
	assert.Equal(t, models.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "no suitable templates found")
}

func TestOrchestrator_Templates_UsesCache(t *testing.T) {
	env := newTestEnv(t)
	source := &fakeSource{templates: sampleTemplates(4)}
	o := newTestOrchestrator(t, env, source, &fakeCaptioner{})
	ctx := context.Background()

	first, err := o.Templates(ctx, models.SourceImgflip, 3)
	require.NoError(t, err)
	second, err := o.Templates(ctx, models.SourceImgflip, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
	assert.Equal(t, 1, source.calls)
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Popularity, first[i].Popularity)
	}
}

func TestOrchestrator_Templates_UnknownSource(t *testing.T) {
	env := newTestEnv(t)
	o := newTestOrchestrator(t, env, &fakeSource{}, &fakeCaptioner{})

	_, err := o.Templates(context.Background(), models.SourceName("9gag"), 5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrchestrator_ResolveTemplates_PinnedTemplate(t *testing.T) {
	env := newTestEnv(t)
	templates := sampleTemplates(4)
	o := newTestOrchestrator(t, env, &fakeSource{templates: templates}, &fakeCaptioner{})

	req := sampleRequest()
	req.TemplateID = templates[3].TemplateID

	got, err := o.ResolveTemplates(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, templates[3].TemplateID, got[0].TemplateID)
}

func TestEstimateCompletionSeconds(t *testing.T) {
	// 5 + 4*3 + 1*2 + 0 = 19, padded to 22.8
	assert.Equal(t, 23, EstimateCompletionSeconds(2, 2, 2, 2*time.Second))
	// 5 + 15*3 + 3*2 + 2*2 = 60, padded to 72
	assert.Equal(t, 72, EstimateCompletionSeconds(5, 3, 2, 2*time.Second))
	assert.Equal(t, 0, EstimateCompletionSeconds(0, 3, 2, 2*time.Second))
}
