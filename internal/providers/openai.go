package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/s9b/memenem-backend/internal/models"
)

// DefaultOpenAIModel is used when no model is configured
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAICaptioner writes captions with the OpenAI chat completions API
type OpenAICaptioner struct {
	client openai.Client
	model  string
}

// NewOpenAICaptioner creates an OpenAI captioner. baseURL overrides the API
// endpoint and may be empty.
func NewOpenAICaptioner(apiKey, model, baseURL string) (*OpenAICaptioner, error) {
	if apiKey == "" {
		return nil, errors.New("openai captioner requires an API key")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICaptioner{client: openai.NewClient(opts...), model: model}, nil
}

func (o *OpenAICaptioner) Name() string {
	return "openai"
}

func (o *OpenAICaptioner) Generate(ctx context.Context, topic string, style models.HumorStyle, tmpl models.Template) (*models.CaptionSet, error) {
	keywords := models.Keywords(topic)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(captionPrompt(topic, style, tmpl, keywords)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "meme_captions",
					Schema: any(captionSchema(tmpl)),
					Strict: openai.Bool(true),
				},
			},
		},
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("openai: no choices returned")
	}

	captions, err := parseCaptions(completion.Choices[0].Message.Content, tmpl)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return &models.CaptionSet{Captions: captions, Method: o.Name(), Keywords: keywords}, nil
}
