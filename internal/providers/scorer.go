package providers

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/s9b/memenem-backend/internal/models"
)

var trendingWords = []string{
	"monday", "weekend", "work", "coffee", "meeting", "zoom", "remote",
	"tiktok", "instagram", "twitter", "meme", "viral", "trending",
	"mood", "vibe", "energy", "aesthetic", "literally", "period",
}

var styleBonus = map[models.HumorStyle]float64{
	models.StyleSarcastic:      2,
	models.StyleGenZSlang:      1.5,
	models.StyleWholesome:      1,
	models.StyleCorporateIrony: 0.5,
	models.StyleDarkHumor:      0,
}

// HeuristicScorer predicts virality from template popularity, caption length
// and how well the captions match the template and trending words.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

func (HeuristicScorer) Score(_ context.Context, tmpl models.Template, captions map[string]string, style models.HumorStyle, topic string) (float64, error) {
	caption := joinCaptions(tmpl, captions)
	length := float64(utf8.RuneCountInString(caption))
	familiarity := tmpl.Popularity * 0.9

	score := tmpl.Popularity*0.4 +
		(50-math.Abs(length-25))*0.8 +
		keywordMatch(tmpl.Tags, caption, topic)*30 +
		familiarity*0.3 +
		styleBonus[style]
	return math.Min(100, math.Max(0, score)), nil
}

// joinCaptions concatenates panel captions in panel order
func joinCaptions(tmpl models.Template, captions map[string]string) string {
	parts := make([]string, 0, len(captions))
	for _, k := range tmpl.PanelKeys() {
		if c, ok := captions[k]; ok && c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " / ")
}

// keywordMatch returns a 0-1 score for tag and trending word overlap
func keywordMatch(tags []string, caption, topic string) float64 {
	caption = strings.ToLower(caption)
	topic = strings.ToLower(topic)
	contains := func(word string) bool {
		return strings.Contains(caption, word) || strings.Contains(topic, word)
	}

	matches := 0
	for _, tag := range tags {
		if tag != "" && contains(strings.ToLower(tag)) {
			matches++
		}
	}
	score := float64(matches) / float64(max(len(tags), 1))

	trending := 0
	for _, w := range trendingWords {
		if contains(w) {
			trending++
		}
	}
	score += math.Min(0.3, float64(trending)*0.1)
	return math.Min(1, score)
}
