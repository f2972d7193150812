package service

import (
	"math"
	"sort"
	"strings"

	"github.com/s9b/memenem-backend/internal/models"
)

// relevance scores how well a template fits a topic: +3 for each keyword in
// the name, +2 for each keyword found in a tag, +4 when any word of the topic
// appears in the name, plus up to 5 points of popularity.
func relevance(topic string, keywords []string, t models.Template) float64 {
	name := strings.ToLower(t.Name)
	var score float64
	for _, k := range keywords {
		if strings.Contains(name, k) {
			score += 3
		}
		for _, tag := range t.Tags {
			if strings.Contains(strings.ToLower(tag), k) {
				score += 2
				break
			}
		}
	}
	for _, w := range strings.Fields(strings.ToLower(topic)) {
		if strings.Contains(name, w) {
			score += 4
			break
		}
	}
	return score + math.Min(t.Popularity/20, 5)
}

// dedupeTemplates keeps the first occurrence of each template_id
func dedupeTemplates(templates []models.Template) []models.Template {
	seen := make(map[string]struct{}, len(templates))
	out := make([]models.Template, 0, len(templates))
	for _, t := range templates {
		if _, ok := seen[t.TemplateID]; ok {
			continue
		}
		seen[t.TemplateID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// RankTemplates deduplicates templates, orders them by topic relevance and
// returns at most limit of them. Ties keep their original order.
func RankTemplates(topic string, templates []models.Template, limit int) []models.Template {
	unique := dedupeTemplates(templates)
	keywords := models.Keywords(topic)

	scores := make(map[string]float64, len(unique))
	for _, t := range unique {
		scores[t.TemplateID] = relevance(topic, keywords, t)
	}
	sort.SliceStable(unique, func(i, j int) bool {
		return scores[unique[i].TemplateID] > scores[unique[j].TemplateID]
	})

	if limit >= 0 && len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}
