package engine

import (
	"strings"
	"time"
)

// WhisperResult is the whisper adapter's payload. Times are chunk-relative
// seconds.
type WhisperResult struct {
	Text     string           `json:"text"`
	Language string           `json:"language,omitempty"`
	Segments []WhisperSegment `json:"segments"`
}

type WhisperSegment struct {
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Text  string        `json:"text"`
	Words []WhisperWord `json:"words,omitempty"`
}

type WhisperWord struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// VoskResult mirrors a vosk-server final result, merged across the
// utterances of one chunk.
type VoskResult struct {
	Text   string     `json:"text"`
	Result []VoskWord `json:"result,omitempty"`
}

type VoskWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

// wordPiece is one decoder token with timing.
type wordPiece struct {
	Text  string
	P     float32
	Start time.Duration
	End   time.Duration
}

// joinPieces groups sub-word tokens into words. A token with a leading
// space starts a new word; the word's probability is the mean over its
// tokens.
func joinPieces(pieces []wordPiece) []WhisperWord {
	var (
		words []WhisperWord
		probs []float32
	)
	flush := func() {
		if len(words) == 0 || len(probs) == 0 {
			return
		}
		var sum float32
		for _, p := range probs {
			sum += p
		}
		w := &words[len(words)-1]
		w.Word = strings.TrimSpace(w.Word)
		w.Probability = float64(sum / float32(len(probs)))
		probs = probs[:0]
	}
	for _, p := range pieces {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if len(words) == 0 || strings.HasPrefix(p.Text, " ") {
			flush()
			words = append(words, WhisperWord{Word: p.Text, Start: p.Start.Seconds(), End: p.End.Seconds()})
		} else {
			w := &words[len(words)-1]
			w.Word += p.Text
			w.End = p.End.Seconds()
		}
		probs = append(probs, p.P)
	}
	flush()
	return words
}
