package normalize

import (
	"strings"

	"voxstruct/internal/transcript"
)

// nativeDoc is a superset of the engine payload shapes.
type nativeDoc struct {
	Error string `json:"error"`

	Text     string `json:"text"`
	Language string `json:"language"`

	// whisper family
	Segments []nativeSegment `json:"segments"`
	// vosk
	Result []nativeWord `json:"result"`
	// coqui stt --json
	Transcripts []coquiTranscript `json:"transcripts"`
}

type nativeSegment struct {
	Start      *float64     `json:"start"`
	End        *float64     `json:"end"`
	Text       string       `json:"text"`
	Confidence *float64     `json:"confidence"`
	Words      []nativeWord `json:"words"`
}

// nativeWord accepts the field spellings used across engines.
type nativeWord struct {
	Word *string `json:"word"`
	Text *string `json:"text"`

	Start     *float64 `json:"start"`
	End       *float64 `json:"end"`
	StartTime *float64 `json:"start_time"`
	Duration  *float64 `json:"duration"`

	Conf        *float64 `json:"conf"`
	Confidence  *float64 `json:"confidence"`
	Probability *float64 `json:"probability"`
}

type coquiTranscript struct {
	Confidence *float64     `json:"confidence"`
	Words      []nativeWord `json:"words"`
}

func (w nativeWord) text() string {
	if w.Word != nil {
		return *w.Word
	}
	if w.Text != nil {
		return *w.Text
	}
	return ""
}

func (w nativeWord) unit() transcript.WordUnit {
	start, end := w.Start, w.End
	if start == nil && w.StartTime != nil {
		start = w.StartTime
		if w.Duration != nil {
			e := *w.StartTime + *w.Duration
			end = &e
		}
	}
	return timed(w.text(), seconds(start), seconds(end), confidence(w.Confidence, w.Probability, w.Conf))
}

func wordsOf(in []nativeWord) []transcript.WordUnit {
	out := make([]transcript.WordUnit, 0, len(in))
	for _, w := range in {
		if strings.TrimSpace(w.text()) == "" {
			continue
		}
		out = append(out, w.unit())
	}
	return out
}

func fromWhisper(doc nativeDoc) extraction {
	ex := extraction{text: strings.TrimSpace(doc.Text), language: doc.Language}
	var texts []string
	for _, seg := range doc.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		words := wordsOf(seg.Words)
		conf := confidence(seg.Confidence)
		if conf == nil {
			conf = meanPtr(words)
		}
		ex.phrases = append(ex.phrases, timed(text, seconds(seg.Start), seconds(seg.End), conf))
		ex.words = append(ex.words, words...)
	}
	if ex.text == "" {
		ex.text = strings.Join(texts, " ")
	}
	return ex
}

func fromVosk(doc nativeDoc) extraction {
	return extraction{
		text:  strings.TrimSpace(doc.Text),
		words: wordsOf(doc.Result),
	}
}

// fromCoqui reads the best candidate transcript. Its confidence is a
// log-score and is ignored.
func fromCoqui(doc nativeDoc) extraction {
	if len(doc.Transcripts) == 0 {
		return extraction{text: strings.TrimSpace(doc.Text)}
	}
	best := doc.Transcripts[0]
	words := wordsOf(best.Words)
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		text = strings.Join(texts, " ")
	}
	return extraction{text: text, words: words}
}
