// Package ident canonicalises user and label identifiers before they are used
// as storage keys. Every string that names a user or a command label must pass
// through [Normalize] exactly once at each system boundary, so that two raw
// spellings of the same identifier always collide to the same key.
package ident

import "strings"

// Default is the identifier used when normalisation leaves nothing behind
// (empty input, or input consisting only of separators).
const Default = "default"

// Normalize lowercases s, maps every character outside [a-z0-9_] to '_',
// collapses runs of '_' and strips leading/trailing '_'. An empty result
// falls back to [Default].
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '_' })
	out := strings.Join(parts, "_")
	if out == "" {
		return Default
	}
	return out
}
