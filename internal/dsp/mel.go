package dsp

import "math"

// hzToMel converts a frequency in Hz to the HTK mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts an HTK mel value back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterbank builds numFilters triangular filters spanning 0 Hz to
// sampleRate/2, each row covering numBins spectrogram bins (fftSize/2 + 1).
// Rows are returned in filter order; weights outside a filter's triangle
// are zero.
func melFilterbank(numFilters, fftSize, sampleRate int) [][]float64 {
	numBins := fftSize/2 + 1
	maxMel := hzToMel(float64(sampleRate) / 2)

	// numFilters triangles need numFilters+2 evenly spaced mel edge points.
	edges := make([]float64, numFilters+2)
	for i := range edges {
		mel := maxMel * float64(i) / float64(numFilters+1)
		edges[i] = melToHz(mel) * float64(fftSize) / float64(sampleRate)
	}

	filters := make([][]float64, numFilters)
	for f := range numFilters {
		row := make([]float64, numBins)
		lo, mid, hi := edges[f], edges[f+1], edges[f+2]
		for b := range numBins {
			fb := float64(b)
			switch {
			case fb > lo && fb < mid:
				row[b] = (fb - lo) / (mid - lo)
			case fb >= mid && fb < hi:
				row[b] = (hi - fb) / (hi - mid)
			}
		}
		filters[f] = row
	}
	return filters
}

// dctII computes the first numCoeffs coefficients of the orthonormal DCT-II
// of src. This is the standard cepstral decorrelation step; an explicit
// implementation is used because only a short prefix of the transform is
// needed (numCoeffs ≪ len(src)).
func dctII(src []float64, numCoeffs int) []float64 {
	n := len(src)
	out := make([]float64, numCoeffs)
	if n == 0 {
		return out
	}
	scale0 := math.Sqrt(1.0 / float64(n))
	scale := math.Sqrt(2.0 / float64(n))
	for k := range numCoeffs {
		var sum float64
		for i, v := range src {
			sum += v * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/float64(n))
		}
		if k == 0 {
			out[k] = sum * scale0
		} else {
			out[k] = sum * scale
		}
	}
	return out
}

// hannWindow returns an n-point periodic Hann window.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
