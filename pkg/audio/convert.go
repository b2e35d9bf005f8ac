package audio

import (
	"encoding/binary"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// PCMToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. The input length must be
// even (two bytes per sample); any trailing odd byte is silently ignored.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// PCMToFloat32Mono down-mixes multi-channel 16-bit PCM to mono float32 by
// averaging all channels per frame. If channels is 1 this is equivalent to
// [PCMToFloat32].
func PCMToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		return PCMToFloat32(pcm)
	}
	samplesPerChannel := len(pcm) / (2 * channels)
	mono := make([]float32, samplesPerChannel)
	for i := range samplesPerChannel {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// Float32ToPCM converts float32 samples in [-1.0, 1.0] to 16-bit signed
// little-endian PCM. Samples outside the valid range are clipped.
func Float32ToPCM(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767.0)
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(v))
	}
	return pcm
}

// ResampleMono resamples a mono float32 waveform from srcRate to dstRate
// through a filtering polyphase resampler, so content above the target's
// Nyquist frequency is attenuated instead of aliasing into the band the
// feature extraction reads. If srcRate == dstRate or either rate is
// non-positive, the input is returned unchanged. The output always holds
// exactly len(samples)*dstRate/srcRate samples.
func ResampleMono(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: resample %d Hz to %d Hz: %w", srcRate, dstRate, err)
	}

	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}

	want := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	out := make([]float32, 0, want)
	appendChunk := func(chunk []float64) {
		for _, s := range chunk {
			out = append(out, float32(s))
		}
	}

	chunk, err := rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("audio: resample %d Hz to %d Hz: %w", srcRate, dstRate, err)
	}
	appendChunk(chunk)

	// The filter holds back its group delay; push silence through until
	// enough frames have surfaced.
	flush := make([]float64, srcRate/10+1)
	for pass := 0; len(out) < want && pass < 8; pass++ {
		chunk, err := rs.Process(flush)
		if err != nil {
			return nil, fmt.Errorf("audio: resample %d Hz to %d Hz: flush: %w", srcRate, dstRate, err)
		}
		appendChunk(chunk)
	}

	if len(out) > want {
		out = out[:want]
	}
	for len(out) < want {
		out = append(out, 0)
	}
	return out, nil
}
