package model

import (
	"sort"
	"time"
)

// FitLabels builds the label codec for a training set: the sorted distinct
// labels, plus the class index of every input row. Sorting makes the
// index↔label mapping independent of enrollment order.
func FitLabels(labels []string) ([]string, []int) {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	classes := make([]string, 0, len(set))
	for l := range set {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, l := range classes {
		index[l] = i
	}
	y := make([]int, len(labels))
	for i, l := range labels {
		y[i] = index[l]
	}
	return classes, y
}

// Bundle is one user's trained classifier together with the label codec:
// Labels[i] is the command label for forest class i. Derived entirely from
// the profile's examples at ProfileVersion; a later profile version means
// the bundle is stale until the next retrain.
type Bundle struct {
	Forest         *Forest   `msgpack:"forest"`
	Labels         []string  `msgpack:"labels"`
	FeatureLength  int       `msgpack:"feature_length"`
	ProfileVersion int64     `msgpack:"profile_version"`
	TrainedAt      time.Time `msgpack:"trained_at"`
}

// PredictProba returns the per-command probabilities for one feature vector,
// aligned with b.Labels.
func (b *Bundle) PredictProba(features []float64) []float64 {
	return b.Forest.PredictProba(features)
}
