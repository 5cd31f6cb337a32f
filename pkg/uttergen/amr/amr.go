// Package amr expands abbreviated tag codes into canonical AMR names.
package amr

import "strings"

// Map maps a short tag code to its canonical AMR name.
type Map map[string]string

// Lookup returns the canonical name for code, or "" when the code is unknown.
func (m Map) Lookup(code string) string {
	return m[code]
}

// Expand maps each whitespace-separated token of tag through m and returns
// the distinct, non-empty canonical names in order of first appearance.
func Expand(tag string, m Map) []string {
	tokens := strings.Fields(tag)
	result := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))

	for _, tok := range tokens {
		name := m.Lookup(tok)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}

	return result
}
