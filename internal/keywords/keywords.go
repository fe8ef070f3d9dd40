// Package keywords extracts searchable keywords from derived text. Extraction
// is purely local: lowercase, strip punctuation, drop stopwords and short
// tokens, de-duplicate preserving first-seen order, cap the result.
package keywords

import (
	"regexp"
	"strings"
)

// maxTokenLength bounds individual keyword length.
const maxTokenLength = 250

// DefaultMax is the default cap on extracted keywords.
const DefaultMax = 10

// nonWord strips punctuation while keeping letters and digits in any script.
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// stopwords are never emitted as keywords. Includes generic captioning filler
// ("image", "shows", ...) alongside common English stopwords.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an and are as at be by for from has he in is it its of on that the
		to was will with this but they have had what said each which she do
		how their if up out many then them these so some her would make like
		into him time two more go no way could my than first been call who
		oil sit now find down day did get come made may part text image shows
		picture photo photograph showing depicting containing`) {
		stopwords[w] = struct{}{}
	}
}

// Extract returns up to max unique lowercase keywords from text, in order of
// first appearance. A non-positive max falls back to DefaultMax.
func Extract(text string, max int) []string {
	if max <= 0 {
		max = DefaultMax
	}

	cleaned := nonWord.ReplaceAllString(strings.ToLower(text), "")

	seen := make(map[string]struct{})
	result := make([]string, 0, max)

	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 2 || len(word) > maxTokenLength {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}

		seen[word] = struct{}{}
		result = append(result, word)
		if len(result) == max {
			break
		}
	}

	return result
}
