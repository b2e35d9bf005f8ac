package audio

import "context"

// Source acquires one fixed push-to-talk capture: a mono waveform at the
// configured sample rate. A capture always runs to completion; there is no
// early cutoff beyond context cancellation before the capture starts.
type Source interface {
	// Record returns one complete capture. Implementations must return a
	// waveform whose SampleRate matches their configured target rate.
	Record(ctx context.Context) (Waveform, error)
}

// FileSource is a [Source] that decodes a stored WAV file, down-mixing and
// resampling to TargetRate as needed. It stands in for a live microphone in
// batch enrollment and tests.
type FileSource struct {
	Path       string
	TargetRate int
}

// Record implements [Source].
func (s FileSource) Record(ctx context.Context) (Waveform, error) {
	if err := ctx.Err(); err != nil {
		return Waveform{}, err
	}
	return ReadWAV(s.Path, s.TargetRate)
}

// MemorySource is a [Source] backed by an in-memory waveform, used for
// uploaded captures that were already decoded by the HTTP layer.
type MemorySource struct {
	Wave Waveform
}

// Record implements [Source].
func (s MemorySource) Record(ctx context.Context) (Waveform, error) {
	if err := ctx.Err(); err != nil {
		return Waveform{}, err
	}
	return s.Wave, nil
}
