package pause

import (
	"encoding/binary"
	"fmt"

	"voxstruct/internal/audio"

	vad "github.com/maxhawkins/go-webrtcvad"
)

// VADAnalyzer treats runs of WebRTC VAD non-voice frames as silence. The
// dB threshold is not used; Aggressiveness (0-3) controls sensitivity.
type VADAnalyzer struct {
	Aggressiveness int
	FrameMS        int
}

// Silences implements SilenceAnalyzer.
func (a VADAnalyzer) Silences(buf *audio.Buffer, _ float64, minSilenceMS int) ([]Range, error) {
	if !buf.Loaded() {
		return nil, fmt.Errorf("vad scan: %w", audio.ErrInvalidState)
	}
	rate := buf.SampleRate
	v, err := newVAD(rate, a.FrameMS)
	if err != nil {
		return nil, err
	}
	frameSamples := rate * a.FrameMS / 1000
	if err := v.SetMode(a.Aggressiveness); err != nil {
		return nil, fmt.Errorf("vad mode: %w", err)
	}

	var (
		ranges   []Range
		inSilent bool
		runStart int64
		frame    = make([]byte, frameSamples*2)
		pos      int64
	)
	closeRun := func(end int64) {
		if inSilent && end-runStart >= int64(minSilenceMS) {
			ranges = append(ranges, Range{StartMS: runStart, EndMS: end})
		}
		inSilent = false
	}
	for off := 0; off+frameSamples <= len(buf.Samples); off += frameSamples {
		for i, s := range buf.Samples[off : off+frameSamples] {
			binary.LittleEndian.PutUint16(frame[2*i:], uint16(s))
		}
		voice, err := v.Process(rate, frame)
		if err != nil {
			return nil, fmt.Errorf("vad process: %w", err)
		}
		pos = int64(off) * 1000 / int64(rate)
		if voice {
			closeRun(pos)
			continue
		}
		if !inSilent {
			inSilent = true
			runStart = pos
		}
	}
	closeRun(buf.DurationMS())
	return ranges, nil
}

// CheckVADFrame reports whether frameMS is a usable VAD frame at rate.
func CheckVADFrame(rate, frameMS int) error {
	_, err := newVAD(rate, frameMS)
	return err
}

func newVAD(rate, frameMS int) (*vad.VAD, error) {
	if frameMS != 10 && frameMS != 20 && frameMS != 30 {
		return nil, fmt.Errorf("vad frame_ms must be 10, 20, or 30 (got %d)", frameMS)
	}
	v, err := vad.New()
	if err != nil {
		return nil, fmt.Errorf("vad init: %w", err)
	}
	if !v.ValidRateAndFrameLength(rate, rate*frameMS/1000) {
		return nil, fmt.Errorf("invalid frame_ms %d for sample_rate %d", frameMS, rate)
	}
	return v, nil
}
