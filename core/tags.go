package core

import "strings"

const maxTags = 10

var tagStopwords = map[string]struct{}{
	"a": {}, "the": {}, "and": {}, "of": {}, "for": {}, "with": {}, "in": {}, "on": {}, "at": {},
}

// extractTags derives indexing tags from the enhanced prompt. Words of
// length three or less and stopwords are dropped, duplicates collapse, and
// the result is capped at ten entries. Tag order carries no meaning.
func extractTags(prompt string) []string {
	words := strings.Fields(strings.ToLower(strings.ReplaceAll(prompt, ",", " ")))

	seen := make(map[string]struct{}, len(words))
	var tags []string
	for _, word := range words {
		if len(word) <= 3 {
			continue
		}
		if _, stop := tagStopwords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		tags = append(tags, word)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}
