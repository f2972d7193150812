package models

import (
	"strings"
	"unicode"
)

// maxKeywords caps how many keywords are taken from a topic
const maxKeywords = 5

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "been": {}, "being": {},
}

// Keywords returns up to five lowercase words of text that are longer than
// two letters and not stop words, in order of appearance.
func Keywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	keywords := make([]string, 0, maxKeywords)
	for _, w := range words {
		if _, stop := stopWords[w]; stop || len([]rune(w)) <= 2 {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}
