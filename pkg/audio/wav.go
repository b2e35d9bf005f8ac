package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes the WAV file at path into a mono [Waveform] at targetRate.
// Multi-channel audio is down-mixed by averaging and a differing native
// sample rate is converted with [ResampleMono], so the result is always
// directly comparable to live captures at the configured rate.
func ReadWAV(path string, targetRate int) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: open wav %q: %w", path, err)
	}
	defer f.Close()

	w, err := DecodeWAV(f, targetRate)
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: decode wav %q: %w", path, err)
	}
	return w, nil
}

// DecodeWAV decodes WAV data from rs into a mono [Waveform] at targetRate,
// down-mixing and resampling the same way [ReadWAV] does. Useful for uploads
// that never touch the filesystem.
func DecodeWAV(rs io.ReadSeeker, targetRate int) (Waveform, error) {
	dec := wav.NewDecoder(rs)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return Waveform{}, fmt.Errorf("audio: decode wav: missing format header")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float32(channels)
	}

	if buf.Format.SampleRate != targetRate {
		samples, err = ResampleMono(samples, buf.Format.SampleRate, targetRate)
		if err != nil {
			return Waveform{}, err
		}
	}

	return Waveform{Samples: samples, SampleRate: targetRate}, nil
}

// WriteWAV encodes w as a 16-bit mono WAV file at path. The file is written
// in place; callers that need atomicity should write to a temporary path and
// rename.
func WriteWAV(path string, w Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create wav %q: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, w.SampleRate, 16, 1, 1)

	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		data[i] = int(s * 32767.0)
	}

	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode wav %q: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalise wav %q: %w", path, err)
	}
	return nil
}
