package kpi

import (
	"regexp"
	"strings"
)

var (
	nonAlphaRE = regexp.MustCompile(`[^a-zA-Z\s]`)
	wordRE     = regexp.MustCompile(`[A-Za-z']+`)
)

// countPronouns lowercases the text, strips everything but letters to
// whitespace, and counts words contained in set. Whole-word matching, unlike
// the affection/profanity substring heuristic.
func countPronouns(text string, set []string) int {
	if text == "" {
		return 0
	}
	cleaned := nonAlphaRE.ReplaceAllString(strings.ToLower(text), " ")
	n := 0
	for _, w := range strings.Fields(cleaned) {
		if inSet(w, set) {
			n++
		}
	}
	return n
}

// wordTokens extracts lowercase alphabetic tokens (apostrophes kept, so
// "don't" survives as one token) for the word cloud.
func wordTokens(text string) []string {
	return wordRE.FindAllString(strings.ToLower(text), -1)
}
