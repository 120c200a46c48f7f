// Package normalize holds the canonicalization rules applied to extracted values:
// accent folding, monetary parsing, employer keys and the cross-language keyword
// tables used for marital status, countries and currencies.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Fold lowercases s and strips diacritics, so "União" and "uniao" compare equal.
func Fold(s string) string {
	// transform.Chain keeps state, so a fresh chain is built for every call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// CollapseSpaces trims s and replaces every run of whitespace with a single space.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// ClientKey returns the identity used to group extractions for one client.
func ClientKey(s string) string {
	return CollapseSpaces(Fold(s))
}
