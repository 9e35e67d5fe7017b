package transcript

import (
	"fmt"
	"strings"
	"time"
)

// Builder is an append-only accumulator. Granularity is fixed at
// construction; Build never mutates state and may be called any number of
// times between appends. A Builder is not safe for concurrent use.
type Builder struct {
	granularity Granularity
	thresholds  Thresholds

	segments       []segment
	totalMS        int64
	pausePoints    []int64
	speakerChanges []int64
	confidences    []float64
}

// NewBuilder returns an empty builder.
func NewBuilder(g Granularity, th Thresholds) (*Builder, error) {
	if _, err := ParseGranularity(string(g)); err != nil {
		return nil, err
	}
	return &Builder{granularity: g, thresholds: th}, nil
}

// Granularity reports the builder's fixed granularity.
func (b *Builder) Granularity() Granularity { return b.granularity }

// Len returns the number of stored segments.
func (b *Builder) Len() int { return len(b.segments) }

// AddChunkSegment appends a phrase-level segment with surrounding
// whitespace removed. speaker may be empty.
func (b *Builder) AddChunkSegment(text string, startMS, endMS int64, speaker string, confidence *float64) error {
	if b.granularity != Chunk {
		return fmt.Errorf("add chunk segment on %s builder: %w", b.granularity, ErrGranularityMismatch)
	}
	b.append(segment{text: strings.TrimSpace(text), startMS: startMS, endMS: endMS, speaker: speaker, confidence: confidence})
	return nil
}

// AddWordSegments appends every word that has both a start and an end,
// offset by chunkStartMS. One speaker label applies to the whole batch.
// It returns the number of words skipped for missing timing.
func (b *Builder) AddWordSegments(words []WordUnit, chunkStartMS int64, speaker string) (int, error) {
	if b.granularity != Word {
		return 0, fmt.Errorf("add word segments on %s builder: %w", b.granularity, ErrGranularityMismatch)
	}
	skipped := 0
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Start == nil || w.End == nil {
			skipped++
			continue
		}
		b.append(segment{
			text:       text,
			startMS:    chunkStartMS + toMS(*w.Start),
			endMS:      chunkStartMS + toMS(*w.End),
			speaker:    speaker,
			confidence: w.Confidence,
		})
	}
	return skipped, nil
}

// AddChunkUnit appends a phrase with chunk-relative timing, offset by
// chunkStartMS. Units without text or timing are skipped and reported false.
func (b *Builder) AddChunkUnit(u WordUnit, chunkStartMS int64, speaker string) (bool, error) {
	if b.granularity != Chunk {
		return false, fmt.Errorf("add chunk unit on %s builder: %w", b.granularity, ErrGranularityMismatch)
	}
	if strings.TrimSpace(u.Text) == "" || u.Start == nil || u.End == nil {
		return false, nil
	}
	return true, b.AddChunkSegment(u.Text, chunkStartMS+toMS(*u.Start), chunkStartMS+toMS(*u.End), speaker, u.Confidence)
}

// AddPausePoint records an absolute pause timestamp as given.
func (b *Builder) AddPausePoint(ms int64) {
	b.pausePoints = append(b.pausePoints, ms)
}

func (b *Builder) append(s segment) {
	if s.speaker != "" && (len(b.segments) == 0 || b.segments[len(b.segments)-1].speaker != s.speaker) {
		b.speakerChanges = append(b.speakerChanges, s.startMS)
	}
	b.segments = append(b.segments, s)
	b.totalMS = max(b.totalMS, s.endMS)
	if s.confidence != nil {
		b.confidences = append(b.confidences, *s.confidence)
	}
}

// pauseAligned reports whether any pause point lies strictly within the
// tolerance of ms.
func (b *Builder) pauseAligned(ms int64) bool {
	for _, p := range b.pausePoints {
		d := p - ms
		if d < 0 {
			d = -d
		}
		if d < b.thresholds.PauseToleranceMS {
			return true
		}
	}
	return false
}

// PausePoints returns a copy of the recorded pause points.
func (b *Builder) PausePoints() []int64 {
	return append([]int64(nil), b.pausePoints...)
}

// ChunkSegments returns the stored segments of a chunk-mode builder.
func (b *Builder) ChunkSegments() ([]ChunkSegment, error) {
	if b.granularity != Chunk {
		return nil, fmt.Errorf("chunk segments on %s builder: %w", b.granularity, ErrGranularityMismatch)
	}
	out := make([]ChunkSegment, len(b.segments))
	for i, s := range b.segments {
		out[i] = ChunkSegment{Text: s.text, StartMS: s.startMS, EndMS: s.endMS, Speaker: optString(s.speaker), Confidence: s.confidence}
	}
	return out, nil
}

// WordSegments returns the stored segments of a word-mode builder.
func (b *Builder) WordSegments() ([]WordSegment, error) {
	if b.granularity != Word {
		return nil, fmt.Errorf("word segments on %s builder: %w", b.granularity, ErrGranularityMismatch)
	}
	out := make([]WordSegment, len(b.segments))
	for i, s := range b.segments {
		out[i] = WordSegment{Word: s.text, StartMS: s.startMS, EndMS: s.endMS, Speaker: optString(s.speaker), Confidence: s.confidence}
	}
	return out, nil
}

func toMS(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}
