package dsp

import (
	"math"
	"testing"

	"github.com/soundpilot/soundpilot/pkg/audio"
)

// tone returns a mono sine wave at the given frequency and amplitude.
func tone(freq float64, amp float32, seconds float64, rate int) audio.Waveform {
	n := int(seconds * float64(rate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amp * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return audio.Waveform{Samples: samples, SampleRate: rate}
}

func TestExtractFixedLength(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	e := NewExtractor(cfg)

	waves := map[string]audio.Waveform{
		"empty":      {},
		"very short": tone(440, 0.5, 0.05, cfg.SampleRate),
		"exact":      tone(440, 0.5, 3.0, cfg.SampleRate),
		"long":       tone(440, 0.5, 5.0, cfg.SampleRate),
		"silence":    {Samples: make([]float32, 3*cfg.SampleRate), SampleRate: cfg.SampleRate},
	}

	for name, w := range waves {
		got, err := e.Extract(w)
		if err != nil {
			t.Fatalf("%s: Extract: %v", name, err)
		}
		if len(got) != cfg.FeatureLength() {
			t.Errorf("%s: feature length = %d, want %d", name, len(got), cfg.FeatureLength())
		}
	}
}

func TestExtractEmptyIsZeroVector(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())

	for _, w := range []audio.Waveform{
		{},
		{Samples: make([]float32, 48000), SampleRate: 16000}, // pure silence trims to nothing
	} {
		feats, err := e.Extract(w)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		for i, v := range feats {
			if v != 0 {
				t.Fatalf("element %d = %f, want 0", i, v)
			}
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())
	w := tone(523, 0.7, 2.0, 16000)

	a, err := e.Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	b, err := e.Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("element %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestExtractLoudnessInvariant(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())
	quiet, err := e.Extract(tone(440, 0.1, 2.0, 16000))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	loud, err := e.Extract(tone(440, 0.9, 2.0, 16000))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// Peak normalisation makes the two versions near-identical; the residual
	// difference comes from float32 quantisation of the input samples.
	for i := range quiet {
		if math.Abs(quiet[i]-loud[i]) > 1e-3 {
			t.Fatalf("element %d: quiet %v vs loud %v", i, quiet[i], loud[i])
		}
	}
}

func TestExtractSeparatesTones(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())
	low, err := e.Extract(tone(200, 0.5, 2.0, 16000))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	high, err := e.Extract(tone(3000, 0.5, 2.0, 16000))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var dist float64
	for i := range low {
		d := low[i] - high[i]
		dist += d * d
	}
	if math.Sqrt(dist) < 1.0 {
		t.Errorf("expected distinct spectra to produce distant features, distance = %f", math.Sqrt(dist))
	}
}

func TestExtractResamplesMismatchedRate(t *testing.T) {
	t.Parallel()

	e := NewExtractor(DefaultConfig())
	native, err := e.Extract(tone(440, 0.5, 2.0, 16000))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	resampled, err := e.Extract(tone(440, 0.5, 2.0, 48000))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// Rate conversion filters the signal, so only require the vectors to
	// be close.
	var dist, norm float64
	for i := range native {
		d := native[i] - resampled[i]
		dist += d * d
		norm += native[i] * native[i]
	}
	if norm == 0 {
		t.Fatal("native features are all zero")
	}
	if math.Sqrt(dist)/math.Sqrt(norm) > 0.5 {
		t.Errorf("resampled features too far from native: relative distance %f", math.Sqrt(dist)/math.Sqrt(norm))
	}
}

func TestMelFilterbankShape(t *testing.T) {
	t.Parallel()

	filters := melFilterbank(40, 512, 16000)
	if len(filters) != 40 {
		t.Fatalf("filter count = %d, want 40", len(filters))
	}
	for i, row := range filters {
		if len(row) != 257 {
			t.Fatalf("filter %d has %d bins, want 257", i, len(row))
		}
		var sum float64
		for _, v := range row {
			if v < 0 {
				t.Fatalf("filter %d has negative weight", i)
			}
			sum += v
		}
		if sum == 0 {
			t.Errorf("filter %d is all zero", i)
		}
	}
}

func TestDCTIIConstantSignal(t *testing.T) {
	t.Parallel()

	src := []float64{1, 1, 1, 1}
	out := dctII(src, 4)

	// DCT-II of a constant concentrates all energy in coefficient 0.
	if math.Abs(out[0]-2.0) > 1e-9 {
		t.Errorf("c0 = %f, want 2.0", out[0])
	}
	for k := 1; k < 4; k++ {
		if math.Abs(out[k]) > 1e-9 {
			t.Errorf("c%d = %f, want 0", k, out[k])
		}
	}
}
