package providers

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/s9b/memenem-backend/internal/models"
)

// DefaultGeminiModel is used when no model is configured
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiCaptioner writes captions with the Gemini API
type GeminiCaptioner struct {
	client *genai.Client
	model  string
}

// NewGeminiCaptioner creates a Gemini captioner. baseURL overrides the API
// endpoint and may be empty.
func NewGeminiCaptioner(ctx context.Context, apiKey, model, baseURL string) (*GeminiCaptioner, error) {
	if apiKey == "" {
		return nil, errors.New("gemini captioner requires an API key")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiCaptioner{client: client, model: model}, nil
}

func (g *GeminiCaptioner) Name() string {
	return "gemini"
}

func (g *GeminiCaptioner) Generate(ctx context.Context, topic string, style models.HumorStyle, tmpl models.Template) (*models.CaptionSet, error) {
	keywords := models.Keywords(topic)
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: captionPrompt(topic, style, tmpl, keywords)}},
	}}

	temperature := float32(1.0)
	cfg := &genai.GenerateContentConfig{
		Temperature:        &temperature,
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: geminiSchema(tmpl),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	if len(result.Candidates) == 0 {
		return nil, errors.New("gemini: no candidates returned")
	}

	captions, err := parseCaptions(result.Text(), tmpl)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &models.CaptionSet{Captions: captions, Method: g.Name(), Keywords: keywords}, nil
}

func geminiSchema(tmpl models.Template) *genai.Schema {
	keys := tmpl.PanelKeys()
	props := make(map[string]*genai.Schema, len(keys))
	for i, k := range keys {
		props[k] = &genai.Schema{
			Type:        "string",
			Description: fmt.Sprintf("Caption for panel %d.", i+1),
		}
	}
	return &genai.Schema{Type: "object", Properties: props, Required: keys}
}
