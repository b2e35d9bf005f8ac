package classify

import (
	"reflect"
	"testing"
)

func TestDecideBoundaries(t *testing.T) {
	t.Parallel()

	cfg := DefaultDeciderConfig()

	cases := []struct {
		name   string
		ranked []LabelProba
		want   string
	}{
		{
			name:   "clears both thresholds",
			ranked: []LabelProba{{"lights_on", 0.61}, {"fan_off", 0.40}},
			want:   "lights_on",
		},
		{
			name:   "margin too small",
			ranked: []LabelProba{{"lights_on", 0.61}, {"fan_off", 0.50}},
			want:   LabelUnknown,
		},
		{
			name:   "top below minimum",
			ranked: []LabelProba{{"lights_on", 0.55}, {"fan_off", 0.10}},
			want:   LabelUnknown,
		},
		{
			name:   "no candidates",
			ranked: nil,
			want:   LabelUnknown,
		},
		{
			name:   "single class counts runner-up as zero",
			ranked: []LabelProba{{"lights_on", 0.70}},
			want:   "lights_on",
		},
		{
			name:   "exactly on both boundaries",
			ranked: []LabelProba{{"lights_on", 0.60}, {"fan_off", 0.45}},
			want:   "lights_on",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Decide(tc.ranked, cfg); got != tc.want {
				t.Errorf("Decide(%v) = %q, want %q", tc.ranked, got, tc.want)
			}
		})
	}
}

func TestRankSortsDescending(t *testing.T) {
	t.Parallel()

	ranked := Rank(
		[]string{"a", "b", "c"},
		[]float64{0.2, 0.7, 0.1},
	)
	want := []LabelProba{{"b", 0.7}, {"a", 0.2}, {"c", 0.1}}
	if !reflect.DeepEqual(ranked, want) {
		t.Errorf("Rank = %v, want %v", ranked, want)
	}
}

func TestRankTiesBreakByLabel(t *testing.T) {
	t.Parallel()

	ranked := Rank([]string{"b", "a"}, []float64{0.5, 0.5})
	if ranked[0].Label != "a" {
		t.Errorf("tie order = %v, want label 'a' first", ranked)
	}
}
