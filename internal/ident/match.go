package ident

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// MatcherOption is a functional option for configuring a [Matcher].
type MatcherOption func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched label to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher suggests the closest enrolled label for a free-text query, for
// "did you mean" output when a requested label does not exist.
//
// Candidates are first filtered by Double Metaphone code overlap, then
// ranked by Jaro-Winkler similarity. When no phonetic candidate clears the
// threshold, a pure Jaro-Winkler pass with a stricter threshold is used.
// All methods are safe for concurrent use; the Matcher is read-only after
// construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a [Matcher] configured with the supplied options.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Suggest finds the label from labels most similar to query. Both sides are
// tokenised on the separators [Normalize] produces, so "lights on",
// "lights_on", and "Lights-On!" all compare equal.
//
// When matched is false, suggestion equals query unchanged and confidence
// is 0.
func (m *Matcher) Suggest(query string, labels []string) (suggestion string, confidence float64, matched bool) {
	queryTokens := labelTokens(query)
	if len(labels) == 0 || len(queryTokens) == 0 {
		return query, 0, false
	}
	queryJoined := strings.Join(queryTokens, " ")
	queryCodes := codesForTokens(queryTokens)

	type candidate struct {
		label    string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, label := range labels {
		labelTks := labelTokens(label)
		if len(labelTks) == 0 {
			continue
		}
		labelJoined := strings.Join(labelTks, " ")

		phoneticMatch := codesOverlap(queryCodes, codesForTokens(labelTks))
		score := bestSimilarity(queryTokens, labelTks, queryJoined, labelJoined)

		if phoneticMatch {
			if score >= m.phoneticThreshold {
				if !best.phonetic || score > best.score {
					best = candidate{label: label, score: score, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if score >= m.fuzzyThreshold && score > best.score {
				best = candidate{label: label, score: score, phonetic: false}
			}
		}
	}

	if best.label != "" {
		return best.label, best.score, true
	}
	return query, 0, false
}

// labelTokens lower-cases s and splits it on everything [Normalize] maps to
// an underscore.
func labelTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity computes the highest Jaro-Winkler similarity between the
// query and a label: full strings, space-stripped strings, and the best
// pairwise token score.
func bestSimilarity(queryTokens, labelTks []string, queryJoined, labelJoined string) float64 {
	score := matchr.JaroWinkler(queryJoined, labelJoined, false)

	if len(queryTokens) > 1 || len(labelTks) > 1 {
		concat1 := strings.Join(queryTokens, "")
		concat2 := strings.Join(labelTks, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, qt := range queryTokens {
		for _, lt := range labelTks {
			if s := matchr.JaroWinkler(qt, lt, false); s > score {
				score = s
			}
		}
	}

	return score
}
