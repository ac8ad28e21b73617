package spotify

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalizer prepares names for catalog queries and fingerprints: punctuation
// is stripped, whitespace collapsed, then the result is looked up in a table of
// known spelling differences between the history service and the catalog.
type Normalizer struct {
	replacements map[string]string
}

// NewNormalizer creates a Normalizer with the given exact-match substitution table.
// Keys are stripped the same way as lookups so that a key containing
// punctuation still matches.
func NewNormalizer(replacements map[string]string) *Normalizer {
	table := make(map[string]string, len(replacements))
	for k, v := range replacements {
		table[StripPunctuation(k)] = v
	}
	return &Normalizer{replacements: table}
}

// Normalize strips punctuation and applies the substitution table.
func (n *Normalizer) Normalize(s string) string {
	return n.Replace(StripPunctuation(s))
}

// Replace returns the substitution for s, or s itself when the table has no entry.
func (n *Normalizer) Replace(s string) string {
	if n == nil {
		return s
	}
	if r, ok := n.replacements[s]; ok {
		return r
	}
	return s
}

// StripPunctuation composes s to NFC, removes Unicode punctuation and
// collapses runs of whitespace.
func StripPunctuation(s string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, norm.NFC.String(s))
	return strings.Join(strings.Fields(stripped), " ")
}
