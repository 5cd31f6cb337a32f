// Package normalize cleans utterance and tag text before it is written out.
package normalize

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// Text transliterates s to ASCII, drops every character outside the
// allowed set, collapses whitespace and lowercases the result.
//
// Allowed characters: a-z, A-Z, 0-9, 'ñ', ':', '<', '>' and the plain space.
// Tabs and newlines are removed rather than turned into spaces.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = unidecode.Unidecode(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
		}
	}

	return strings.ToLower(strings.Join(strings.Fields(b.String()), " "))
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	}
	switch r {
	case 'ñ', ':', '<', '>', ' ':
		return true
	}
	return false
}
