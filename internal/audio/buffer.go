// Package audio loads recordings into mono 16 kHz PCM buffers, splits them
// into fixed-duration chunks and exports chunks as temporary WAV files.
package audio

import (
	"errors"
	"time"
)

// ErrInvalidState is returned when an operation needs a loaded buffer.
var ErrInvalidState = errors.New("audio not loaded")

// Buffer holds decoded mono 16-bit PCM. Callers own it; the chunker and
// pause detector only read it.
type Buffer struct {
	Samples    []int16
	SampleRate int
	Channels   int

	// Source format before normalization, reported in run metadata.
	SourceRate     int
	SourceChannels int

	loaded bool
}

// NewBuffer wraps already-normalized mono samples.
func NewBuffer(samples []int16, sampleRate int) *Buffer {
	return &Buffer{
		Samples:        samples,
		SampleRate:     sampleRate,
		Channels:       1,
		SourceRate:     sampleRate,
		SourceChannels: 1,
		loaded:         true,
	}
}

// Loaded reports whether the buffer holds decoded audio.
func (b *Buffer) Loaded() bool {
	return b != nil && b.loaded && b.SampleRate > 0
}

// DurationMS returns the buffer length in whole milliseconds.
func (b *Buffer) DurationMS() int64 {
	if !b.Loaded() {
		return 0
	}
	return int64(len(b.Samples)) * 1000 / int64(b.SampleRate)
}

// Duration returns the buffer length.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.DurationMS()) * time.Millisecond
}

// sampleAt converts a millisecond offset to a sample index clamped to the buffer.
func (b *Buffer) sampleAt(ms int64) int {
	idx := ms * int64(b.SampleRate) / 1000
	if idx < 0 {
		return 0
	}
	if idx > int64(len(b.Samples)) {
		return len(b.Samples)
	}
	return int(idx)
}

// Float32 returns samples scaled to [-1, 1].
func (b *Buffer) Float32() []float32 {
	return int16ToFloat32(b.Samples)
}

func int16ToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}

func float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, v := range in {
		switch {
		case v >= 1:
			out[i] = 32767
		case v <= -1:
			out[i] = -32768
		default:
			out[i] = int16(v * 32767)
		}
	}
	return out
}
