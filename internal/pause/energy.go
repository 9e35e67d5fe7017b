package pause

import (
	"fmt"
	"math"

	"voxstruct/internal/audio"
)

const fullScale16 = 32768.0

// EnergyAnalyzer slides a min-silence window over the buffer in SeekStepMS
// steps and marks windows whose RMS stays at or below the dBFS threshold.
type EnergyAnalyzer struct {
	SeekStepMS int
}

// Silences implements SilenceAnalyzer.
func (e EnergyAnalyzer) Silences(buf *audio.Buffer, thresholdDB float64, minSilenceMS int) ([]Range, error) {
	if !buf.Loaded() {
		return nil, fmt.Errorf("energy scan: %w", audio.ErrInvalidState)
	}
	step := int64(e.SeekStepMS)
	if step <= 0 {
		step = 1
	}
	minLen := int64(minSilenceMS)
	total := buf.DurationMS()
	if minLen <= 0 || total < minLen {
		return nil, nil
	}

	// per-millisecond prefix sums of squared samples and sample counts
	energy := make([]float64, total+1)
	counts := make([]int64, total+1)
	rate := int64(buf.SampleRate)
	for ms := int64(1); ms <= total; ms++ {
		from, to := (ms-1)*rate/1000, ms*rate/1000
		var sum float64
		for _, s := range buf.Samples[from:to] {
			v := float64(s)
			sum += v * v
		}
		energy[ms] = energy[ms-1] + sum
		counts[ms] = counts[ms-1] + (to - from)
	}

	limit := math.Pow(10, thresholdDB/20) * fullScale16
	var starts []int64
	for i := int64(0); i <= total-minLen; i += step {
		n := counts[i+minLen] - counts[i]
		if n == 0 {
			continue
		}
		rms := math.Sqrt((energy[i+minLen] - energy[i]) / float64(n))
		if rms <= limit {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		return nil, nil
	}

	var ranges []Range
	prev := starts[0]
	begin := prev
	for _, i := range starts[1:] {
		continuous := i == prev+step
		// overlapping windows stay in one range even across a skipped step
		hasGap := i > prev+minLen
		if !continuous && hasGap {
			ranges = append(ranges, Range{StartMS: begin, EndMS: prev + minLen})
			begin = i
		}
		prev = i
	}
	ranges = append(ranges, Range{StartMS: begin, EndMS: prev + minLen})
	return ranges, nil
}
