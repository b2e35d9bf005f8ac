// Package classify orchestrates the enrollment → training → confidence-gated
// classification pipeline over the profile and model stores. All user and
// label strings are normalised at the package boundary, and operations on
// the same user are serialised with a per-user mutex so concurrent requests
// can never interleave a read-modify-write of the persisted profile.
package classify

import "sort"

// LabelUnknown is the decision returned when the confidence policy rejects
// every candidate. It is a normal, expected outcome, not an error.
const LabelUnknown = "UNKNOWN"

// DeciderConfig holds the confidence policy thresholds.
type DeciderConfig struct {
	// MinProba is the minimum probability the top class must reach.
	MinProba float64

	// MarginProba is the minimum gap required between the top two classes.
	// A confident-but-ambiguous tie between two close commands is rejected
	// just like a low-confidence guess: for a control trigger a wrong
	// action is worse than no action.
	MarginProba float64
}

// DefaultDeciderConfig returns the standard thresholds.
func DefaultDeciderConfig() DeciderConfig {
	return DeciderConfig{MinProba: 0.60, MarginProba: 0.15}
}

// LabelProba pairs a command label with its predicted probability.
type LabelProba struct {
	Label string  `json:"label"`
	Proba float64 `json:"probability"`
}

// Rank pairs labels with probs and sorts descending by probability. Ties
// break by label so the order is deterministic.
func Rank(labels []string, probs []float64) []LabelProba {
	ranked := make([]LabelProba, len(labels))
	for i, l := range labels {
		ranked[i] = LabelProba{Label: l, Proba: probs[i]}
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Proba != ranked[b].Proba {
			return ranked[a].Proba > ranked[b].Proba
		}
		return ranked[a].Label < ranked[b].Label
	})
	return ranked
}

// Decide applies the confidence-and-margin policy to a ranked probability
// list and returns the winning label, or [LabelUnknown] when there are no
// candidates, the top probability is below MinProba, or the gap to the
// runner-up is below MarginProba. With a single candidate the runner-up
// probability counts as zero.
func Decide(ranked []LabelProba, cfg DeciderConfig) string {
	if len(ranked) == 0 {
		return LabelUnknown
	}
	p1 := ranked[0].Proba
	p2 := 0.0
	if len(ranked) > 1 {
		p2 = ranked[1].Proba
	}
	if p1 >= cfg.MinProba && (p1-p2) >= cfg.MarginProba {
		return ranked[0].Label
	}
	return LabelUnknown
}
