package curation

import (
	"strings"
	"unicode"
)

// Weights holds the field weights of the duplicate similarity score.
// They must sum to 1.
type Weights struct {
	Title   float64
	Content float64
	Tags    float64
}

// item is the comparable view of a record during duplicate detection.
type item struct {
	table   string
	id      int64
	title   string
	content string
	tags    []string
}

// Similarity scores two items as a weighted sum of per-field word
// overlaps. The score is in [0,1]; 1 means identical under this metric.
func Similarity(w Weights, a, b item) float64 {
	return w.Title*overlap(tokens(a.title), tokens(b.title)) +
		w.Content*overlap(tokens(a.content), tokens(b.content)) +
		w.Tags*overlap(tagSet(a.tags), tagSet(b.tags))
}

// overlap is the Jaccard index of two word sets. Two empty sets score 0,
// not 1: records with no content in a field share nothing.
func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// tokens lowercases and splits on non-alphanumeric runes, dropping
// words too short to carry meaning.
func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

func tagSet(tags []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}
