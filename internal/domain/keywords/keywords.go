// Package keywords derives a small salient-term set from post text.
// The terms shrink the clustering candidate pool; the main search path
// never uses them and always searches the full scope.
package keywords

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxTerms is the number of terms returned when maxTerms <= 0.
	DefaultMaxTerms = 10
	// MinTermLength is the minimum token length in runes.
	MinTermLength = 4
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {},
	"then": {}, "else": {}, "for": {}, "from": {}, "with": {}, "about": {},
	"into": {}, "onto": {}, "over": {}, "under": {}, "between": {}, "through": {},
	"during": {}, "before": {}, "after": {}, "above": {}, "below": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "there": {}, "here": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "who": {},
	"whom": {}, "whose": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"shall": {}, "might": {}, "must": {}, "have": {}, "been": {}, "being": {},
	"does": {}, "doing": {}, "just": {}, "very": {}, "such": {}, "some": {},
	"same": {}, "only": {}, "other": {}, "than": {}, "them": {}, "they": {},
	"their": {}, "theirs": {}, "your": {}, "yours": {}, "ours": {}, "mine": {},
	"also": {}, "more": {}, "most": {}, "much": {}, "many": {}, "each": {},
	"every": {}, "both": {}, "because": {}, "again": {}, "further": {},
	"once": {}, "down": {}, "itself": {},
}

// Extract tokenizes text on non-letter/digit boundaries, lowercases,
// drops stop words, tokens shorter than MinTermLength runes and purely
// numeric tokens, then returns the top maxTerms by frequency with ties
// broken by first occurrence order. Deterministic for identical input.
func Extract(text string, maxTerms int) []string {
	if maxTerms <= 0 {
		maxTerms = DefaultMaxTerms
	}

	counts := make(map[string]int)
	terms := make([]string, 0)

	for _, tok := range Tokenize(text) {
		if !usable(tok) {
			continue
		}
		if counts[tok] == 0 {
			terms = append(terms, tok)
		}
		counts[tok]++
	}

	// terms is in first-occurrence order; a stable sort by descending
	// count keeps that order among equal counts.
	sort.SliceStable(terms, func(i, j int) bool {
		return counts[terms[i]] > counts[terms[j]]
	})

	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	return terms
}

// Tokenize lowercases text and splits it on any rune that is not a
// letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func usable(tok string) bool {
	if utf8.RuneCountInString(tok) < MinTermLength {
		return false
	}
	if _, ok := stopWords[tok]; ok {
		return false
	}
	return !numeric(tok)
}

func numeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
