// Package keywords defines the Keyword Extractor collaborator
// contract: given text and k, return at most k candidate keyword
// strings. The production collaborator is an embedding/tokenization
// model external to this repository; this package ships only the
// interface and a frequency-based default so tag computation has a
// concrete implementation to fall back on when no model is
// configured.
package keywords

import (
	"sort"
	"strings"
	"unicode"
)

// Extractor turns text into at most k ranked keyword strings.
type Extractor interface {
	ExtractKeywords(text string, k int) []string
}

// FrequencyExtractor ranks words by occurrence count after folding
// case and dropping a small stopword list, breaking ties
// alphabetically for determinism.
type FrequencyExtractor struct {
	stopwords map[string]struct{}
}

// New builds a FrequencyExtractor with the default English stopword
// list.
func New() *FrequencyExtractor {
	return &FrequencyExtractor{stopwords: defaultStopwords}
}

var defaultStopwords = buildStopwords([]string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"to", "was", "were", "will", "with", "this", "these", "those",
	"but", "or", "not", "no", "do", "does", "did", "have", "had",
	"can", "could", "should", "would", "may", "might", "must", "shall",
})

func buildStopwords(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ExtractKeywords implements Extractor.
func (e *FrequencyExtractor) ExtractKeywords(text string, k int) []string {
	if k <= 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, word := range tokenize(text) {
		if _, stop := e.stopwords[word]; stop {
			continue
		}
		if len(word) < 2 {
			continue
		}
		counts[word]++
	}

	type candidate struct {
		word  string
		count int
	}
	candidates := make([]candidate, 0, len(counts))
	for word, count := range counts {
		candidates = append(candidates, candidate{word, count})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].word < candidates[j].word
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	result := make([]string, len(candidates))
	for i, c := range candidates {
		result[i] = c.word
	}
	return result
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
