// Package pause finds silence intervals in a buffer and reports them as
// pause midpoints, pause ranges or the complementary speech segments.
package pause

import (
	"fmt"
	"sort"

	"voxstruct/internal/audio"

	"github.com/sirupsen/logrus"
)

// Default detection parameters.
const (
	DefaultThresholdDB  = -40.0
	DefaultMinSilenceMS = 500
)

// Range is a silence interval in absolute milliseconds.
type Range struct {
	StartMS int64
	EndMS   int64
}

// Interval is a time span in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SilenceAnalyzer returns sorted, non-overlapping silence ranges of at
// least minSilenceMS where the signal stays below thresholdDB.
type SilenceAnalyzer interface {
	Silences(buf *audio.Buffer, thresholdDB float64, minSilenceMS int) ([]Range, error)
}

// Detector wraps an analyzer with fixed parameters.
type Detector struct {
	ThresholdDB  float64
	MinSilenceMS int
	Analyzer     SilenceAnalyzer
	logger       logrus.FieldLogger
}

// NewDetector returns a detector; a nil analyzer means the energy scan.
func NewDetector(analyzer SilenceAnalyzer, thresholdDB float64, minSilenceMS int, logger logrus.FieldLogger) *Detector {
	if analyzer == nil {
		analyzer = EnergyAnalyzer{}
	}
	if minSilenceMS <= 0 {
		minSilenceMS = DefaultMinSilenceMS
	}
	return &Detector{
		ThresholdDB:  thresholdDB,
		MinSilenceMS: minSilenceMS,
		Analyzer:     analyzer,
		logger:       logger,
	}
}

func (d *Detector) silences(buf *audio.Buffer) ([]Range, error) {
	ranges, err := d.Analyzer.Silences(buf, d.ThresholdDB, d.MinSilenceMS)
	if err != nil {
		d.logger.Warnf("pause analysis failed: %v", err)
		return nil, fmt.Errorf("detect silence: %w", err)
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].StartMS < ranges[j].StartMS })
	return ranges, nil
}

// DetectPauses returns pause midpoints in seconds. On analysis failure it
// returns an empty slice together with the error.
func (d *Detector) DetectPauses(buf *audio.Buffer) ([]float64, error) {
	ranges, err := d.silences(buf)
	if err != nil {
		return []float64{}, err
	}
	points := make([]float64, 0, len(ranges))
	for _, r := range ranges {
		points = append(points, float64(r.StartMS+r.EndMS)/2000)
	}
	return points, nil
}

// PauseRanges returns silence ranges in seconds.
func (d *Detector) PauseRanges(buf *audio.Buffer) ([]Interval, error) {
	ranges, err := d.silences(buf)
	if err != nil {
		return []Interval{}, err
	}
	out := make([]Interval, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, Interval{Start: float64(r.StartMS) / 1000, End: float64(r.EndMS) / 1000})
	}
	return out, nil
}

// SpeechSegments returns the complement of the pause ranges within
// [0, duration).
func (d *Detector) SpeechSegments(buf *audio.Buffer) ([]Interval, error) {
	pauses, err := d.PauseRanges(buf)
	if err != nil {
		return []Interval{}, err
	}
	duration := float64(buf.DurationMS()) / 1000
	segments := make([]Interval, 0, len(pauses)+1)
	pos := 0.0
	for _, p := range pauses {
		if pos < p.Start {
			segments = append(segments, Interval{Start: pos, End: p.Start})
		}
		pos = p.End
	}
	if pos < duration {
		segments = append(segments, Interval{Start: pos, End: duration})
	}
	return segments, nil
}

// MidpointsMS converts pause midpoints from seconds to absolute milliseconds.
func MidpointsMS(points []float64) []int64 {
	out := make([]int64, len(points))
	for i, p := range points {
		out[i] = int64(p*1000 + 0.5)
	}
	return out
}
