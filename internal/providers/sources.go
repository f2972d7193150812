package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/models"
)

// ErrSourceDisabled is returned for sources that are not configured
var ErrSourceDisabled = errors.New("template source disabled")

// SourceError reports an upstream that answered but refused the request
type SourceError struct {
	Source  models.SourceName
	Message string
}

func (e *SourceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: request unsuccessful", e.Source)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

// TemplateFetcher is a single upstream of meme templates
type TemplateFetcher interface {
	Name() models.SourceName
	Fetch(ctx context.Context, limit int) ([]models.Template, error)
}

// MultiSource routes template requests to the configured fetchers. The
// "all" source queries every fetcher concurrently and merges what succeeds.
type MultiSource struct {
	fetchers map[models.SourceName]TemplateFetcher
	order    []models.SourceName
	logger   zerolog.Logger
}

// NewMultiSource creates a source over fetchers
func NewMultiSource(logger zerolog.Logger, fetchers ...TemplateFetcher) *MultiSource {
	m := &MultiSource{
		fetchers: make(map[models.SourceName]TemplateFetcher, len(fetchers)),
		logger:   logger.With().Str("component", "sources").Logger(),
	}
	for _, f := range fetchers {
		if _, dup := m.fetchers[f.Name()]; !dup {
			m.order = append(m.order, f.Name())
		}
		m.fetchers[f.Name()] = f
	}
	return m
}

// Sources lists the enabled source names
func (m *MultiSource) Sources() []models.SourceName {
	return append([]models.SourceName(nil), m.order...)
}

func (m *MultiSource) Fetch(ctx context.Context, source models.SourceName, limit int) ([]models.Template, error) {
	if source != models.SourceAll {
		f, ok := m.fetchers[source]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSourceDisabled, source)
		}
		return f.Fetch(ctx, limit)
	}
	return m.fetchAll(ctx, limit)
}

func (m *MultiSource) fetchAll(ctx context.Context, limit int) ([]models.Template, error) {
	if len(m.order) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", ErrSourceDisabled)
	}

	var (
		mu        sync.Mutex
		templates []models.Template
		errs      []error
	)

	// a failing source must not cancel the others, so errors are collected
	var wg sync.WaitGroup
	for _, name := range m.order {
		f := m.fetchers[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			found, err := f.Fetch(ctx, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Warn().Err(err).Str("source", string(name)).Msg("source failed")
				errs = append(errs, err)
				return
			}
			templates = append(templates, found...)
		}()
	}
	wg.Wait()

	if len(templates) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Popularity > templates[j].Popularity
	})
	if limit > 0 && len(templates) > limit {
		templates = templates[:limit]
	}
	return templates, nil
}
