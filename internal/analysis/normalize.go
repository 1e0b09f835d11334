// Package analysis holds the report matching engine: text normalization,
// same-team duplicate classification, cross-team issue clustering and the
// team leaderboard.
package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeTeam lower-cases s, collapses whitespace and capitalizes the first
// letter of each word: "  aLPHA   squad " becomes "Alpha Squad".
func NormalizeTeam(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// NormalizeURL trims surrounding whitespace and every trailing slash.
func NormalizeURL(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})
}

// NormalizeDescription lower-cases s and collapses whitespace runs to a single space.
func NormalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeEmail trims and lower-cases a contact address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
