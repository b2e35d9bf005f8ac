// Package dsp implements the deterministic feature extraction that turns a
// raw capture into the fixed-length vector the classifier is trained on:
// silence trim, peak normalisation, a fixed analysis window, and cepstral
// coefficient statistics.
//
// Extraction is a pure function of the input waveform. Enrollment and
// inference must share one [Config]; vectors produced under different
// window or coefficient settings are not comparable and must never be mixed
// in one classifier.
package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/soundpilot/soundpilot/pkg/audio"
)

// Config holds the feature extraction parameters.
type Config struct {
	// SampleRate is the waveform sample rate in Hz the extractor operates at.
	SampleRate int

	// WindowSec is the fixed analysis window in seconds. Shorter input is
	// zero-padded at the end, longer input truncated at the end.
	WindowSec float64

	// NumCepstra is the number of cepstral coefficients per frame. The final
	// feature vector has length 4 × NumCepstra (mean and std of the
	// coefficients and of their delta).
	NumCepstra int

	// FrameLength and HopLength are the short-time analysis frame and hop
	// sizes in samples.
	FrameLength int
	HopLength   int

	// NumMelFilters is the number of triangular mel filters applied to each
	// frame's power spectrum before the cepstral transform.
	NumMelFilters int

	// TrimThresholdDB is the energy threshold, in dB below the loudest
	// frame, under which leading and trailing frames count as silence.
	TrimThresholdDB float64
}

// DefaultConfig returns the extraction parameters shared by enrollment and
// inference: 16 kHz mono, a 3-second window, 20 cepstra over 40 mel filters
// with 25 ms frames at a 10 ms hop, and a 30 dB trim threshold.
func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		WindowSec:       3.0,
		NumCepstra:      20,
		FrameLength:     400,
		HopLength:       160,
		NumMelFilters:   40,
		TrimThresholdDB: 30,
	}
}

// FeatureLength returns the length of every vector produced under c.
func (c Config) FeatureLength() int {
	return 4 * c.NumCepstra
}

// windowSamples returns the fixed window length in samples.
func (c Config) windowSamples() int {
	return int(c.WindowSec * float64(c.SampleRate))
}

// Extractor computes fixed-length feature vectors from waveforms. It is
// read-only after construction and safe for concurrent use.
type Extractor struct {
	cfg     Config
	fftSize int
	window  []float64
	filters [][]float64
}

// NewExtractor builds an [Extractor] for cfg. The FFT size is the smallest
// power of two that fits a frame.
func NewExtractor(cfg Config) *Extractor {
	fftSize := 1
	for fftSize < cfg.FrameLength {
		fftSize <<= 1
	}
	return &Extractor{
		cfg:     cfg,
		fftSize: fftSize,
		window:  hannWindow(cfg.FrameLength),
		filters: melFilterbank(cfg.NumMelFilters, fftSize, cfg.SampleRate),
	}
}

// SampleRate returns the sample rate the extractor operates at.
func (e *Extractor) SampleRate() int { return e.cfg.SampleRate }

// FeatureLength returns the length of every vector this extractor produces.
func (e *Extractor) FeatureLength() int { return e.cfg.FeatureLength() }

// Extract computes the feature vector for w. The result always has exactly
// [Config.FeatureLength] elements; empty input and input that trims down to
// nothing yield the zero vector so that downstream stages never fail on
// silence. A waveform at a different sample rate is converted first; the
// only error case is a failed rate conversion.
func (e *Extractor) Extract(w audio.Waveform) ([]float64, error) {
	out := make([]float64, e.cfg.FeatureLength())

	samples := w.Samples
	if w.SampleRate > 0 && w.SampleRate != e.cfg.SampleRate {
		var err error
		samples, err = audio.ResampleMono(samples, w.SampleRate, e.cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("dsp: convert capture to %d Hz: %w", e.cfg.SampleRate, err)
		}
	}
	windowed := e.preprocess(samples)
	if len(windowed) == 0 {
		return out, nil
	}

	coeffs := e.cepstra(windowed)
	if len(coeffs) == 0 {
		return out, nil
	}

	// Frame-to-frame first difference; the first frame's delta is zero.
	delta := make([][]float64, len(coeffs))
	delta[0] = make([]float64, e.cfg.NumCepstra)
	for t := 1; t < len(coeffs); t++ {
		d := make([]float64, e.cfg.NumCepstra)
		for k := range d {
			d[k] = coeffs[t][k] - coeffs[t-1][k]
		}
		delta[t] = d
	}

	n := e.cfg.NumCepstra
	meanStd(coeffs, out[0:n], out[n:2*n])
	meanStd(delta, out[2*n:3*n], out[3*n:4*n])
	return out, nil
}

// preprocess trims silence, peak-normalises, and forces the fixed window
// length. Returns nil when nothing audible remains.
func (e *Extractor) preprocess(samples []float32) []float64 {
	if len(samples) == 0 {
		return nil
	}

	start, end := e.trimBounds(samples)
	if start >= end {
		return nil
	}
	samples = samples[start:end]

	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}

	target := e.cfg.windowSamples()
	out := make([]float64, target)
	n := len(samples)
	if n > target {
		n = target
	}
	if peak > 1e-6 {
		// Peak normalise; skipped near zero to avoid amplifying noise floor.
		for i := range n {
			out[i] = float64(samples[i]) / peak
		}
	} else {
		for i := range n {
			out[i] = float64(samples[i])
		}
	}
	return out
}

// trimBounds returns the sample range [start, end) that remains after
// removing leading and trailing frames whose RMS energy is more than
// TrimThresholdDB below the loudest frame.
func (e *Extractor) trimBounds(samples []float32) (int, int) {
	frame, hop := e.cfg.FrameLength, e.cfg.HopLength
	if len(samples) < frame {
		frame = len(samples)
	}

	var energies []float64
	var ref float64
	for pos := 0; pos+frame <= len(samples); pos += hop {
		var sum float64
		for _, s := range samples[pos : pos+frame] {
			sum += float64(s) * float64(s)
		}
		rms := math.Sqrt(sum / float64(frame))
		energies = append(energies, rms)
		if rms > ref {
			ref = rms
		}
		if hop == 0 {
			break
		}
	}
	if len(energies) == 0 || ref == 0 {
		return 0, 0
	}

	threshold := ref * math.Pow(10, -e.cfg.TrimThresholdDB/20)
	first, last := -1, -1
	for i, rms := range energies {
		if rms > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, 0
	}

	start := first * hop
	end := last*hop + frame
	if end > len(samples) {
		end = len(samples)
	}
	return start, end
}

// cepstra computes per-frame mel cepstral coefficients over the fixed
// window. One row per frame, NumCepstra columns.
func (e *Extractor) cepstra(samples []float64) [][]float64 {
	frame, hop := e.cfg.FrameLength, e.cfg.HopLength
	numBins := e.fftSize/2 + 1

	// The FFT plan keeps internal scratch state, so build one per call to
	// keep Extract safe for concurrent use.
	fft := fourier.NewFFT(e.fftSize)
	buf := make([]float64, e.fftSize)
	spec := make([]complex128, numBins)
	mel := make([]float64, e.cfg.NumMelFilters)

	var rows [][]float64
	for pos := 0; pos+frame <= len(samples); pos += hop {
		for i := range buf {
			buf[i] = 0
		}
		for i := range frame {
			buf[i] = samples[pos+i] * e.window[i]
		}

		spec = fft.Coefficients(spec, buf)
		for f, filter := range e.filters {
			var sum float64
			for b := range numBins {
				if filter[b] == 0 {
					continue
				}
				re, im := real(spec[b]), imag(spec[b])
				sum += filter[b] * (re*re + im*im)
			}
			mel[f] = math.Log(sum + 1e-10)
		}

		rows = append(rows, dctII(mel, e.cfg.NumCepstra))
	}
	return rows
}

// meanStd writes the per-column mean and population standard deviation of
// rows into mean and std. All rows must have len(mean) columns.
func meanStd(rows [][]float64, mean, std []float64) {
	n := float64(len(rows))
	if n == 0 {
		return
	}
	for _, row := range rows {
		for k, v := range row {
			mean[k] += v
		}
	}
	for k := range mean {
		mean[k] /= n
	}
	for _, row := range rows {
		for k, v := range row {
			d := v - mean[k]
			std[k] += d * d
		}
	}
	for k := range std {
		std[k] = math.Sqrt(std[k] / n)
	}
}
