package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const pcmFormat = 1

// decodeWAV reads a PCM WAV stream and returns mono samples at dstRate.
func decodeWAV(r io.ReadSeeker, dstRate int) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file")
	}
	if dec.WavAudioFormat != pcmFormat {
		return nil, fmt.Errorf("unsupported wav format %d (want PCM)", dec.WavAudioFormat)
	}
	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported wav bit depth %d", dec.BitDepth)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	srcRate := int(dec.SampleRate)
	channels := int(dec.NumChans)
	mono := downmix(pcm.Data, channels, int(dec.BitDepth))
	if dstRate <= 0 {
		dstRate = srcRate
	}
	samples := float32ToInt16(resampleLinear(mono, srcRate, dstRate))
	buf := NewBuffer(samples, dstRate)
	buf.SourceRate = srcRate
	buf.SourceChannels = channels
	return buf, nil
}

// WriteWAV encodes mono 16-bit PCM samples to w.
func WriteWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	enc := wav.NewEncoder(w, sampleRate, 16, 1, pcmFormat)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

// WithTempWAV exports c to a temporary mono 16-bit WAV file, calls fn with
// its path and removes the file on every exit path.
func WithTempWAV(c Chunk, fn func(path string) error) (err error) {
	f, err := os.CreateTemp("", "voxstruct-chunk-*.wav")
	if err != nil {
		return fmt.Errorf("create temp wav: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = fmt.Errorf("remove temp wav: %w", rmErr)
		}
	}()
	if err := WriteWAV(f, c.Samples, c.SampleRate); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp wav: %w", err)
	}
	return fn(path)
}

// ReadWAVFile decodes a WAV file into a buffer at its native rate.
func ReadWAVFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return decodeWAV(f, 0)
}
