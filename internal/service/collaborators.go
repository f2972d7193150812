package service

import (
	"context"

	"github.com/s9b/memenem-backend/internal/models"
)

// TemplateSource fetches meme templates from external providers. With
// models.SourceAll, a failing provider must not hide the others' results.
type TemplateSource interface {
	Fetch(ctx context.Context, source models.SourceName, limit int) ([]models.Template, error)
}

// CaptionGenerator produces one caption per panel of a template.
type CaptionGenerator interface {
	Generate(ctx context.Context, topic string, style models.HumorStyle, tmpl models.Template) (*models.CaptionSet, error)
}

// ViralityScorer predicts a 0-100 popularity score for a captioned template.
type ViralityScorer interface {
	Score(ctx context.Context, tmpl models.Template, captions map[string]string, style models.HumorStyle, topic string) (float64, error)
}
