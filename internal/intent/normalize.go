package intent

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	nonWordPattern    = regexp.MustCompile(`[^\w\s]`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	// "u bi cacion" -> "ubicacion"
	brokenTriplePattern = regexp.MustCompile(`(?i)\b([a-z]{1,3})\s+([a-z]{1,3})\s+([a-z]{3,})\b`)
	// "pre cios" -> "precios"
	brokenPairPattern = regexp.MustCompile(`(?i)\b([a-z]{1,3})\s+([a-z]{3,})\b`)
)

// Normalize lowercases text, strips diacritics and punctuation and collapses
// whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	decomposed := norm.NFD.String(strings.ToLower(text))

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r >= 0x0300 && r <= 0x036F {
			continue
		}
		b.WriteRune(r)
	}

	out := nonWordPattern.ReplaceAllString(b.String(), " ")
	out = whitespacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// ReconstructBrokenWords glues short fragments back onto the word that follows
// them. It expects already normalized input.
func ReconstructBrokenWords(text string) string {
	out := brokenTriplePattern.ReplaceAllString(text, "${1}${2}${3}")
	return brokenPairPattern.ReplaceAllString(out, "${1}${2}")
}

// Tokenize splits a normalized message on single spaces, dropping empties.
func Tokenize(text string) []string {
	parts := strings.Split(text, " ")
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
