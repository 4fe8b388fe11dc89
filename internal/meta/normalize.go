package meta

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize prepares a string for similarity comparison: lowercase,
// accents stripped, whitespace collapsed. Deterministic by construction so
// match scores are reproducible across runs.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(strings.TrimSpace(s))

	if out, _, err := transform.String(stripAccents, s); err == nil {
		s = out
	}

	return strings.Join(strings.Fields(s), " ")
}
