package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/metrics"
	"github.com/s9b/memenem-backend/internal/models"
	"github.com/s9b/memenem-backend/internal/repository"
)

var errStoreDown = errors.New("store down")

// mockStore is an in-memory DocumentStore. Errors can be injected per
// category through upsertErr and findErr.
type mockStore struct {
	mu        sync.Mutex
	docs      map[string]*repository.Document
	upsertErr map[string]error
	findErr   map[string]error
	findPanic map[string]any
	upserts   map[string]int
}

func newMockStore() *mockStore {
	return &mockStore{
		docs:      make(map[string]*repository.Document),
		upsertErr: make(map[string]error),
		findErr:   make(map[string]error),
		findPanic: make(map[string]any),
		upserts:   make(map[string]int),
	}
}

func docKey(category, key string) string {
	return category + "\x00" + key
}

func (m *mockStore) failUpserts(category string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr[category] = err
}

func (m *mockStore) failFinds(category string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findErr[category] = err
}

func (m *mockStore) panicFinds(category string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findPanic[category] = v
}

func (m *mockStore) count(category string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, doc := range m.docs {
		if doc.Category == category {
			n++
		}
	}
	return n
}

func (m *mockStore) Upsert(ctx context.Context, doc *repository.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.upsertErr[doc.Category]; err != nil {
		return err
	}
	cp := *doc
	cp.Value = append([]byte(nil), doc.Value...)
	if existing, ok := m.docs[docKey(doc.Category, doc.Key)]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	m.docs[docKey(doc.Category, doc.Key)] = &cp
	m.upserts[doc.Category]++
	return nil
}

func (m *mockStore) Find(ctx context.Context, category, key string) (*repository.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.findPanic[category]; ok {
		panic(v)
	}
	if err := m.findErr[category]; err != nil {
		return nil, err
	}
	doc, ok := m.docs[docKey(category, key)]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *mockStore) List(ctx context.Context, category string, notExpiredAt time.Time, limit int) ([]*repository.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []*repository.Document
	for _, doc := range m.docs {
		if doc.Category == category && !doc.Expired(notExpiredAt) {
			cp := *doc
			docs = append(docs, &cp)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (m *mockStore) Delete(ctx context.Context, category, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, docKey(category, key))
	return nil
}

func (m *mockStore) DeleteCategory(ctx context.Context, category string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, doc := range m.docs {
		if doc.Category == category {
			delete(m.docs, k)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) DeleteExpired(ctx context.Context, now time.Time) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := make(map[string]int64)
	for k, doc := range m.docs {
		if doc.Expired(now) {
			delete(m.docs, k)
			removed[doc.Category]++
		}
	}
	return removed, nil
}

func (m *mockStore) Stats(ctx context.Context, now time.Time) (map[string]repository.CategoryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[string]repository.CategoryStats)
	for _, doc := range m.docs {
		s := stats[doc.Category]
		s.Count++
		if doc.Expired(now) {
			s.Expired++
		}
		s.SizeBytes += int64(len(doc.Value))
		stats[doc.Category] = s
	}
	return stats, nil
}

func (m *mockStore) Ping(ctx context.Context) error { return nil }

func (m *mockStore) Close() error { return nil }

// fakeCaptioner returns one caption per panel unless fn overrides it
type fakeCaptioner struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, tmpl models.Template) (*models.CaptionSet, error)
}

func (f *fakeCaptioner) Generate(ctx context.Context, topic string, style models.HumorStyle, tmpl models.Template) (*models.CaptionSet, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.fn != nil {
		return f.fn(call, tmpl)
	}
	return panelCaptions(tmpl, topic), nil
}

func (f *fakeCaptioner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func panelCaptions(tmpl models.Template, text string) *models.CaptionSet {
	captions := make(map[string]string)
	for _, k := range tmpl.PanelKeys() {
		captions[k] = text + " " + k
	}
	return &models.CaptionSet{Captions: captions, Method: "fake", Keywords: []string{"test"}}
}

type fakeScorer struct {
	score float64
	err   error
}

func (f *fakeScorer) Score(ctx context.Context, tmpl models.Template, captions map[string]string, style models.HumorStyle, topic string) (float64, error) {
	return f.score, f.err
}

type fakeSource struct {
	templates []models.Template
	err       error
	calls     int
}

func (f *fakeSource) Fetch(ctx context.Context, source models.SourceName, limit int) ([]models.Template, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.templates) > limit {
		return f.templates[:limit], nil
	}
	return f.templates, nil
}

// testEnv bundles services over one mock store
type testEnv struct {
	store   *mockStore
	metrics *metrics.Metrics
	cache   *CacheService
	jobs    *JobService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMockStore()
	m := metrics.NewMetrics()
	logger := zerolog.Nop()
	cache := NewCacheService(store, nil, m, logger)
	return &testEnv{
		store:   store,
		metrics: m,
		cache:   cache,
		jobs:    NewJobService(store, cache, m, logger),
	}
}

func (e *testEnv) processor(captions CaptionGenerator, scorer ViralityScorer, delay time.Duration, config BatchConfig) *BatchProcessor {
	return NewBatchProcessor(e.jobs, e.cache, NewRateLimiter(delay), captions, scorer, e.metrics, zerolog.Nop(), config)
}

// setClock pins both services to the same clock
func (e *testEnv) setClock(now func() time.Time) {
	e.cache.now = now
	e.jobs.now = now
}

func sampleTemplates(n int) []models.Template {
	templates := make([]models.Template, n)
	for i := range templates {
		templates[i] = models.Template{
			TemplateID: "tmpl-" + string(rune('a'+i)),
			Name:       "Template " + string(rune('A'+i)),
			ImageURL:   "https://example.com/" + string(rune('a'+i)) + ".jpg",
			PanelCount: 2,
			Source:     models.SourceImgflip,
			Popularity: float64(90 - i),
		}
	}
	return templates
}

func sampleRequest() models.GenerationRequest {
	return models.GenerationRequest{
		Topic:                 "Monday morning meetings",
		Style:                 models.StyleSarcastic,
		MaxTemplates:          2,
		VariationsPerTemplate: 2,
		Source:                models.SourceImgflip,
	}
}
