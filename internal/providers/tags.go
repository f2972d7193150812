package providers

import (
	"regexp"
	"sort"
	"strings"
)

// nameTags maps a word found in a template name to the tags it implies
var nameTags = map[string][]string{
	"drake":      {"reaction", "choice", "preference"},
	"distracted": {"distraction", "choice", "temptation"},
	"success":    {"success", "celebration"},
	"disaster":   {"disaster", "chaos", "failure"},
	"fail":       {"failure"},
	"guy":        {"person", "reaction"},
	"woman":      {"person", "reaction"},
	"cat":        {"animal", "pet"},
	"dog":        {"animal", "pet"},
	"crying":     {"sad", "emotion"},
	"laughing":   {"happy", "joy"},
	"happy":      {"joy", "emotion"},
	"sad":        {"emotion"},
	"angry":      {"mad", "emotion"},
	"surprised":  {"shock", "reaction"},
	"thinking":   {"contemplation", "decision"},
	"pointing":   {"accusation", "blame"},
	"change":     {"mind", "opinion"},
	"board":      {"meeting", "presentation"},
	"office":     {"work", "corporate"},
	"work":       {"office", "job"},
	"meeting":    {"corporate"},
	"student":    {"school", "education"},
	"school":     {"education"},
	"monday":     {"weekday"},
	"friday":     {"weekday"},
	"morning":    {"time"},
	"night":      {"time"},
	"first":      {"first time", "new"},
	"ancient":    {"old", "historical"},
	"modern":     {"contemporary", "current"},
}

// generateTags returns the sorted, deduplicated tags for a template name
// plus any base tags.
func generateTags(name string, base ...string) []string {
	lower := strings.ToLower(name)
	set := make(map[string]struct{}, len(base)+4)
	for _, t := range base {
		if t != "" {
			set[strings.ToLower(t)] = struct{}{}
		}
	}
	for word, tags := range nameTags {
		if strings.Contains(lower, word) {
			for _, t := range tags {
				set[t] = struct{}{}
			}
		}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

var (
	repeatedBang     = regexp.MustCompile(`!{2,}`)
	repeatedQuestion = regexp.MustCompile(`\?{2,}`)
)

// cleanTitle normalizes whitespace and punctuation, drops the patterns in
// strip and truncates to max runes.
func cleanTitle(title string, max int, strip ...*regexp.Regexp) string {
	for _, re := range strip {
		title = re.ReplaceAllString(title, "")
	}
	title = repeatedBang.ReplaceAllString(title, "!")
	title = repeatedQuestion.ReplaceAllString(title, "?")
	title = strings.Join(strings.Fields(title), " ")
	title = strings.Trim(title, "\"'“”‘’ ")

	if r := []rune(title); max > 3 && len(r) > max {
		title = string(r[:max-3]) + "..."
	}
	return strings.TrimSpace(title)
}
