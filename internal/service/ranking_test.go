package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s9b/memenem-backend/internal/models"
)

func TestRankTemplates_PrefersTopicMatches(t *testing.T) {
	templates := []models.Template{
		{TemplateID: "1", Name: "Distracted Boyfriend", Popularity: 100},
		{TemplateID: "2", Name: "Office Meeting Suggestion", Popularity: 20},
		{TemplateID: "3", Name: "Two Buttons", Tags: []string{"choice", "meetings"}, Popularity: 80},
	}

	ranked := RankTemplates("Monday morning meetings", templates, 3)
	require.Len(t, ranked, 3)
	// "meeting" does not contain "meetings", the tag does
	assert.Equal(t, "3", ranked[0].TemplateID)
	assert.Equal(t, "1", ranked[1].TemplateID)
}

func TestRankTemplates_DeduplicatesAndTruncates(t *testing.T) {
	templates := []models.Template{
		{TemplateID: "a", Name: "A", Popularity: 10},
		{TemplateID: "a", Name: "A again", Popularity: 90},
		{TemplateID: "b", Name: "B", Popularity: 20},
		{TemplateID: "c", Name: "C", Popularity: 30},
	}

	ranked := RankTemplates("unrelated", templates, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "c", ranked[0].TemplateID)
	assert.Equal(t, "b", ranked[1].TemplateID)
}

func TestRankTemplates_StableOnTies(t *testing.T) {
	templates := sampleTemplates(3)
	for i := range templates {
		templates[i].Popularity = 200
	}

	ranked := RankTemplates("nothing matches", templates, 10)
	require.Len(t, ranked, 3)
	for i := range ranked {
		assert.Equal(t, templates[i].TemplateID, ranked[i].TemplateID)
	}
}

func TestRankTemplates_DirectNameMatch(t *testing.T) {
	templates := []models.Template{
		{TemplateID: "1", Name: "Woman Yelling At Cat", Popularity: 60},
		{TemplateID: "2", Name: "Is This A Pigeon", Popularity: 10},
	}

	// "is" is a stop word but still counts as a direct name match
	ranked := RankTemplates("is it friday", templates, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "2", ranked[0].TemplateID)

	ranked = RankTemplates("yelling", templates, 2)
	assert.Equal(t, "1", ranked[0].TemplateID)
}
