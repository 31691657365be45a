// Package search implements the lookup side of Artiller: resolving source
// references into articles, the composed per-tag and per-word lookups over
// the cached index and the durable store, and the match-counting engine
// behind the search endpoint.
package search

import (
	"regexp"
	"strings"
)

var invalidWordCharacters = regexp.MustCompile(`(?i)[^a-z0-9]`)

// MatchableWords splits a search term into the normalised lowercase words
// that can be matched against titles and the word index.
func MatchableWords(term string) []string {
	fields := strings.Fields(invalidWordCharacters.ReplaceAllString(term, " "))

	words := make([]string, 0, len(fields))
	for _, field := range fields {
		if word := strings.ToLower(strings.TrimSpace(field)); word != "" {
			words = append(words, word)
		}
	}
	return words
}
