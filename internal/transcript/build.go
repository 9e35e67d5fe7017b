package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Build renders the current segments. It returns "" when there are none and
// treats an unknown format as Simple.
func (b *Builder) Build(f Format) string {
	if len(b.segments) == 0 {
		return ""
	}
	if f == Raw {
		parts := make([]string, len(b.segments))
		for i, s := range b.segments {
			parts[i] = s.text
		}
		return strings.Join(parts, " ")
	}

	var (
		out strings.Builder
		sep string
	)
	for i, s := range b.segments {
		newSpeaker := s.speaker != "" && (i == 0 || b.segments[i-1].speaker != s.speaker)
		if f == Detailed && newSpeaker {
			if !strings.HasSuffix(sep, "\n") {
				sep = strings.TrimRight(sep, " ") + "\n"
			}
			out.WriteString(sep)
			fmt.Fprintf(&out, "[%s]: ", s.speaker)
		} else {
			out.WriteString(sep)
		}

		text := trimClausePunct(s.text)
		out.WriteString(text)
		if f == Detailed {
			if b.granularity == Word {
				fmt.Fprintf(&out, " [%.2fs]", float64(s.startMS)/1000)
			} else {
				fmt.Fprintf(&out, " [%.1fs]", float64(s.startMS)/1000)
			}
		}

		// a question or exclamation already ends the sentence
		terminal := strings.HasSuffix(text, "?") || strings.HasSuffix(text, "!")
		if i == len(b.segments)-1 {
			if !terminal {
				out.WriteByte('.')
			}
			break
		}
		sep = b.separator(s, b.segments[i+1])
		if terminal {
			sep = strings.TrimLeft(sep, ".,")
			if sep == "" {
				sep = " "
			}
		}
	}
	return strings.TrimSpace(out.String())
}

// separator picks the punctuation between cur and next from the gap between
// them and any pause point near next's start.
func (b *Builder) separator(cur, next segment) string {
	th := b.thresholds
	gap := next.startMS - cur.endMS
	if gap > th.ParagraphGapMS || b.pauseAligned(next.startMS) {
		return ".\n"
	}
	if b.granularity == Word {
		switch {
		case gap > th.WordSentenceGapMS:
			return ". "
		case gap > th.WordCommaGapMS:
			return ", "
		default:
			return " "
		}
	}
	if gap > th.SentenceGapMS {
		return ". "
	}
	return ", "
}

// trimClausePunct drops trailing punctuation the engine already emitted so
// synthesized punctuation is not doubled.
func trimClausePunct(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".,;:")
}

// Metadata is the builder's aggregate record.
type Metadata struct {
	Granularity       Granularity `json:"granularity"`
	DurationSeconds   float64     `json:"duration_seconds"`
	PauseCount        int         `json:"pause_count"`
	SpeakerChanges    int         `json:"speaker_changes"`
	AverageConfidence *float64    `json:"average_confidence"`
	SegmentCount      int         `json:"segment_count"`
}

// Metadata summarizes the accumulated state. AverageConfidence is nil when
// no segment carried a confidence.
func (b *Builder) Metadata() Metadata {
	m := Metadata{
		Granularity:     b.granularity,
		DurationSeconds: float64(b.totalMS) / 1000,
		PauseCount:      len(b.pausePoints),
		SpeakerChanges:  len(b.speakerChanges),
		SegmentCount:    len(b.segments),
	}
	if len(b.confidences) > 0 {
		var sum float64
		for _, c := range b.confidences {
			sum += c
		}
		avg := sum / float64(len(b.confidences))
		m.AverageConfidence = &avg
	}
	return m
}

// LLMSegment is a chunk segment annotated with the pause that follows it.
type LLMSegment struct {
	Text         string  `json:"text"`
	StartMS      int64   `json:"start_time_ms"`
	EndMS        int64   `json:"end_time_ms"`
	Speaker      *string `json:"speaker"`
	PauseAfterMS *int64  `json:"pause_after_ms"`
	IsMajorPause bool    `json:"is_major_pause"`
}

// LLMPayload holds Chunks for chunk-mode builders and Words for word-mode
// builders. It marshals as a bare JSON array.
type LLMPayload struct {
	Granularity Granularity
	Chunks      []LLMSegment
	Words       []WordSegment
}

func (p LLMPayload) MarshalJSON() ([]byte, error) {
	if p.Granularity == Word {
		if p.Words == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(p.Words)
	}
	if p.Chunks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Chunks)
}

// SegmentsForLLM exports the annotated segment list written next to the
// transcript. Word-mode builders return their word segments unchanged.
func (b *Builder) SegmentsForLLM() LLMPayload {
	p := LLMPayload{Granularity: b.granularity}
	if b.granularity == Word {
		p.Words, _ = b.WordSegments()
		return p
	}
	p.Chunks = make([]LLMSegment, len(b.segments))
	for i, s := range b.segments {
		seg := LLMSegment{Text: s.text, StartMS: s.startMS, EndMS: s.endMS, Speaker: optString(s.speaker)}
		if i < len(b.segments)-1 {
			next := b.segments[i+1]
			gap := next.startMS - s.endMS
			seg.PauseAfterMS = &gap
			seg.IsMajorPause = b.pauseAligned(next.startMS) || gap > b.thresholds.ParagraphGapMS
		}
		p.Chunks[i] = seg
	}
	return p
}
