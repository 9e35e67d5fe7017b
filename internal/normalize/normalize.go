// Package normalize turns engine-native payloads into recognition units
// with chunk-relative timing and confidences in [0, 1].
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"voxstruct/internal/engine"
	"voxstruct/internal/transcript"

	"github.com/sirupsen/logrus"
)

// RecognitionUnit is one chunk's normalized result. Units are words in word
// mode and phrases in chunk mode.
type RecognitionUnit struct {
	Engine      string
	Granularity transcript.Granularity
	Text        string
	Language    string
	Units       []transcript.WordUnit
	Confidence  float64

	// Degraded is set when word timing was unavailable and phrases or the
	// whole chunk stand in for words.
	Degraded bool
	// Err is the recognition failure for this chunk, if any.
	Err error
}

// Failed reports whether the engine call for this chunk failed.
func (u RecognitionUnit) Failed() bool { return u.Err != nil }

// Normalizer converts native results. It only logs; it never fails a run.
type Normalizer struct {
	logger logrus.FieldLogger
}

func New(logger logrus.FieldLogger) *Normalizer {
	return &Normalizer{logger: logger}
}

// extraction is what an engine-specific decoder found in a payload.
type extraction struct {
	text     string
	language string
	phrases  []transcript.WordUnit
	words    []transcript.WordUnit
}

// Normalize converts native into a unit for granularity g. chunkDur bounds
// synthesized timing when the engine reported none.
func (n *Normalizer) Normalize(engineName string, native engine.NativeResult, g transcript.Granularity, chunkDur time.Duration) RecognitionUnit {
	unit := RecognitionUnit{Engine: engineName, Granularity: g}
	if native.Err != nil {
		n.logger.WithField("engine", engineName).Errorf("recognition failed: %v", native.Err)
		unit.Err = native.Err
		return unit
	}

	ex, err := decode(engineName, native.Payload)
	if err != nil {
		n.logger.WithField("engine", engineName).Errorf("recognition failed: %v", err)
		unit.Err = err
		return unit
	}
	unit.Text = ex.text
	unit.Language = ex.language

	switch g {
	case transcript.Word:
		unit.Units, unit.Degraded = n.wordUnits(engineName, ex, chunkDur)
	default:
		unit.Units = chunkUnits(ex, chunkDur)
	}
	sortByStart(unit.Units)

	confSource := unit.Units
	if g == transcript.Chunk && len(ex.words) > 0 {
		confSource = ex.words
	}
	unit.Confidence = meanConfidence(confSource)
	return unit
}

// wordUnits returns timed words, falling back to phrases and then to one
// pseudo-word covering the chunk.
func (n *Normalizer) wordUnits(engineName string, ex extraction, chunkDur time.Duration) ([]transcript.WordUnit, bool) {
	if anyTimed(ex.words) {
		return ex.words, false
	}
	log := n.logger.WithField("engine", engineName)
	if anyTimed(ex.phrases) {
		log.Warn("no word-level timing; using phrase segments as words")
		return ex.phrases, true
	}
	if strings.TrimSpace(ex.text) == "" {
		return nil, false
	}
	log.Warn("no timing in result; using the whole chunk as one word")
	return []transcript.WordUnit{wholeChunk(ex.text, meanPtr(ex.words), chunkDur)}, true
}

// chunkUnits keeps engine sub-segments when they carry timing, otherwise
// returns a single aggregate spanning the chunk.
func chunkUnits(ex extraction, chunkDur time.Duration) []transcript.WordUnit {
	if anyTimed(ex.phrases) {
		return ex.phrases
	}
	text := strings.TrimSpace(ex.text)
	if text == "" {
		return nil
	}
	return []transcript.WordUnit{wholeChunk(text, meanPtr(ex.words), chunkDur)}
}

func wholeChunk(text string, confidence *float64, chunkDur time.Duration) transcript.WordUnit {
	start, end := time.Duration(0), chunkDur
	return transcript.WordUnit{Text: strings.TrimSpace(text), Start: &start, End: &end, Confidence: confidence}
}

func decode(engineName string, payload json.RawMessage) (extraction, error) {
	if len(payload) == 0 {
		return extraction{}, errors.New("empty payload")
	}
	var doc nativeDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return extraction{}, fmt.Errorf("decode %s payload: %w", engineName, err)
	}
	if doc.Error != "" {
		return extraction{}, errors.New(doc.Error)
	}
	switch engineName {
	case engine.Whisper:
		return fromWhisper(doc), nil
	case engine.Vosk:
		return fromVosk(doc), nil
	case engine.Coqui:
		return fromCoqui(doc), nil
	}
	// unknown engine: use whichever known shape is populated
	switch {
	case len(doc.Segments) > 0:
		return fromWhisper(doc), nil
	case len(doc.Transcripts) > 0:
		return fromCoqui(doc), nil
	default:
		return fromVosk(doc), nil
	}
}

func anyTimed(units []transcript.WordUnit) bool {
	for _, u := range units {
		if u.Start != nil && u.End != nil {
			return true
		}
	}
	return false
}

// meanConfidence averages present confidences; 0 when none are present.
func meanConfidence(units []transcript.WordUnit) float64 {
	if m := meanPtr(units); m != nil {
		return *m
	}
	return 0
}

func meanPtr(units []transcript.WordUnit) *float64 {
	var (
		sum float64
		n   int
	)
	for _, u := range units {
		if u.Confidence != nil {
			sum += *u.Confidence
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// sortByStart orders units by start, keeping untimed units next to the
// timed unit before them.
func sortByStart(units []transcript.WordUnit) {
	keys := make([]time.Duration, len(units))
	var last time.Duration
	for i, u := range units {
		if u.Start != nil {
			last = *u.Start
		}
		keys[i] = last
	}
	idx := make([]int, len(units))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
	sorted := make([]transcript.WordUnit, len(units))
	for i, j := range idx {
		sorted[i] = units[j]
	}
	copy(units, sorted)
}

func seconds(v *float64) *time.Duration {
	if v == nil || math.IsNaN(*v) || *v < 0 {
		return nil
	}
	d := time.Duration(math.Round(*v * float64(time.Second)))
	return &d
}

// confidence accepts probabilities only; log-scores and other out-of-range
// values count as absent.
func confidence(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil && !math.IsNaN(*v) && *v >= 0 && *v <= 1 {
			c := *v
			return &c
		}
	}
	return nil
}

// timed builds a unit and clamps end so it never precedes start.
func timed(text string, start, end *time.Duration, conf *float64) transcript.WordUnit {
	if start != nil && end != nil && *end < *start {
		e := *start
		end = &e
	}
	return transcript.WordUnit{Text: strings.TrimSpace(text), Start: start, End: end, Confidence: conf}
}
