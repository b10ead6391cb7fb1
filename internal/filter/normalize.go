package filter

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips diacritics and collapses whitespace, so that
// "Président", "president" and "PRÉSIDENT" compare equal.
func Normalize(s string) string {
	out, _, err := transform.String(deaccent, strings.ToLower(s))
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}

func containsAny(text string, keywords []string) bool {
	t := Normalize(text)
	if t == "" {
		return false
	}
	for _, k := range keywords {
		if k = Normalize(k); k != "" && strings.Contains(t, k) {
			return true
		}
	}
	return false
}

func containsNone(text string, keywords []string) bool {
	return !containsAny(text, keywords)
}
