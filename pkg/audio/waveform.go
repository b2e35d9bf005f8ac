// Package audio provides the waveform types and conversions used by the
// soundpilot pipeline: mono float32 waveforms, PCM encoding helpers, linear
// resampling, WAV file I/O, and fixed-window capture sources.
package audio

import (
	"math"
	"time"
)

// Waveform is a mono audio signal. Samples are float32 in [-1.0, 1.0] at
// SampleRate Hz. The zero value is an empty waveform.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the length of the waveform in time.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// RMS returns the root-mean-square energy of the waveform, or 0 for an
// empty waveform. Used as the advisory quality gate during enrollment.
func (w Waveform) RMS() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range w.Samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(w.Samples)))
}

// Peak returns the maximum absolute sample value, or 0 for an empty waveform.
func (w Waveform) Peak() float32 {
	var peak float32
	for _, s := range w.Samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
