package providers

import (
	"context"
	"math"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/models"
)

// DefaultImgflipURL is the public Imgflip API root
const DefaultImgflipURL = "https://api.imgflip.com"

type imgflipResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Memes []imgflipMeme `json:"memes"`
	} `json:"data"`
	ErrorMessage string `json:"error_message"`
}

type imgflipMeme struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	BoxCount int    `json:"box_count"`
}

// ImgflipSource lists the trending templates of the Imgflip API
type ImgflipSource struct {
	baseURL string
	fetch   *fetcher
	logger  zerolog.Logger
}

// NewImgflipSource creates a new Imgflip source
func NewImgflipSource(baseURL string, client *http.Client, requestsPerSecond float64, userAgent string, logger zerolog.Logger) *ImgflipSource {
	if baseURL == "" {
		baseURL = DefaultImgflipURL
	}
	return &ImgflipSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetch:   newFetcher(client, requestsPerSecond, userAgent),
		logger:  logger.With().Str("source", string(models.SourceImgflip)).Logger(),
	}
}

func (s *ImgflipSource) Name() models.SourceName {
	return models.SourceImgflip
}

// Fetch returns up to limit templates in trending order. Popularity falls by
// two points per position with a floor of ten.
func (s *ImgflipSource) Fetch(ctx context.Context, limit int) ([]models.Template, error) {
	var body imgflipResponse
	if err := s.fetch.getJSON(ctx, s.baseURL+"/get_memes", &body); err != nil {
		return nil, err
	}
	if !body.Success {
		return nil, &SourceError{Source: models.SourceImgflip, Message: body.ErrorMessage}
	}

	templates := make([]models.Template, 0, len(body.Data.Memes))
	for i, m := range body.Data.Memes {
		if limit > 0 && len(templates) >= limit {
			break
		}
		name := strings.TrimSpace(m.Name)
		if m.ID == "" || name == "" || m.URL == "" {
			s.logger.Debug().Int("position", i).Msg("skipping incomplete template")
			continue
		}
		panels := m.BoxCount
		if panels < 1 {
			panels = 2
		}
		templates = append(templates, models.Template{
			TemplateID: "imgflip_" + m.ID,
			Name:       name,
			ImageURL:   m.URL,
			PanelCount: panels,
			Characters: []string{},
			Tags:       generateTags(name, "meme", "imgflip"),
			Source:     models.SourceImgflip,
			Popularity: math.Max(100-float64(i)*2, 10),
		})
	}

	s.logger.Debug().Int("templates", len(templates)).Int("limit", limit).Msg("fetched templates")
	return templates, nil
}
