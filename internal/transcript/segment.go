// Package transcript accumulates recognized chunks or words into a single
// ordered transcript with absolute millisecond timestamps, and renders it
// with punctuation derived from the gaps between segments.
package transcript

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrGranularityMismatch is returned when a chunk-mode operation is called
// on a word-mode builder or the reverse.
var ErrGranularityMismatch = errors.New("granularity mismatch")

// Granularity selects what one transcript segment represents.
type Granularity string

const (
	Chunk Granularity = "chunk"
	Word  Granularity = "word"
)

// ParseGranularity validates s.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Chunk, Word:
		return g, nil
	default:
		return "", fmt.Errorf("granularity must be chunk or word (got %q)", s)
	}
}

// Format selects how Build renders segments.
type Format string

const (
	Raw      Format = "raw"
	Simple   Format = "simple"
	Detailed Format = "detailed"
)

// ParseFormat validates s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Raw, Simple, Detailed:
		return f, nil
	default:
		return "", fmt.Errorf("format must be raw, simple or detailed (got %q)", s)
	}
}

// WordUnit is one recognized word or phrase with chunk-relative timing.
// Nil fields were not reported by the engine.
type WordUnit struct {
	Text       string
	Start      *time.Duration
	End        *time.Duration
	Confidence *float64
}

// ChunkSegment is a phrase-level segment with absolute times.
type ChunkSegment struct {
	Text       string   `json:"text"`
	StartMS    int64    `json:"start_time_ms"`
	EndMS      int64    `json:"end_time_ms"`
	Speaker    *string  `json:"speaker,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// WordSegment is a word-level segment with absolute times. This is also the
// record shape of the word timestamp export.
type WordSegment struct {
	Word       string   `json:"word"`
	StartMS    int64    `json:"start_time_ms"`
	EndMS      int64    `json:"end_time_ms"`
	Speaker    *string  `json:"speaker"`
	Confidence *float64 `json:"confidence"`
}

// Thresholds are the gap heuristics used for punctuation, in milliseconds.
type Thresholds struct {
	ParagraphGapMS    int64
	SentenceGapMS     int64
	WordSentenceGapMS int64
	WordCommaGapMS    int64
	PauseToleranceMS  int64
}

// DefaultThresholds returns the stock heuristics.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ParagraphGapMS:    1000,
		SentenceGapMS:     400,
		WordSentenceGapMS: 800,
		WordCommaGapMS:    300,
		PauseToleranceMS:  150,
	}
}

// segment is the stored form shared by both granularities.
type segment struct {
	text       string
	startMS    int64
	endMS      int64
	speaker    string
	confidence *float64
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
