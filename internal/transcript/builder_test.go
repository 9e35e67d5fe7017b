package transcript

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func newBuilder(t *testing.T, g Granularity) *Builder {
	t.Helper()
	b, err := NewBuilder(g, DefaultThresholds())
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return b
}

func conf(v float64) *float64 { return &v }

func secs(v float64) *time.Duration {
	d := time.Duration(math.Round(v * float64(time.Second)))
	return &d
}

func word(text string, start, end float64) WordUnit {
	return WordUnit{Text: text, Start: secs(start), End: secs(end)}
}

func mustChunk(t *testing.T, b *Builder, text string, start, end int64, speaker string, c *float64) {
	t.Helper()
	if err := b.AddChunkSegment(text, start, end, speaker, c); err != nil {
		t.Fatalf("add chunk segment: %v", err)
	}
}

func TestEmptyBuilderBuildsNothing(t *testing.T) {
	for _, g := range []Granularity{Chunk, Word} {
		b := newBuilder(t, g)
		for _, f := range []Format{Raw, Simple, Detailed} {
			if got := b.Build(f); got != "" {
				t.Fatalf("%s/%s build = %q, want empty", g, f, got)
			}
		}
		if m := b.Metadata(); m.SegmentCount != 0 || m.AverageConfidence != nil || m.DurationSeconds != 0 {
			t.Fatalf("empty metadata = %+v", m)
		}
	}
}

func TestNewBuilderRejectsUnknownGranularity(t *testing.T) {
	if _, err := NewBuilder("sentence", DefaultThresholds()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGranularityIsEnforced(t *testing.T) {
	w := newBuilder(t, Word)
	if err := w.AddChunkSegment("hi", 0, 100, "", nil); !errors.Is(err, ErrGranularityMismatch) {
		t.Fatalf("word builder accepted chunk segment: %v", err)
	}
	c := newBuilder(t, Chunk)
	if _, err := c.AddWordSegments([]WordUnit{word("hi", 0, 0.1)}, 0, ""); !errors.Is(err, ErrGranularityMismatch) {
		t.Fatalf("chunk builder accepted words: %v", err)
	}
	if c.Len() != 0 || w.Len() != 0 {
		t.Fatalf("rejected appends must not store segments")
	}
}

func TestWordTimesAreAbsolute(t *testing.T) {
	b := newBuilder(t, Word)
	if _, err := b.AddWordSegments([]WordUnit{word("later", 1.5, 2.0)}, 5000, ""); err != nil {
		t.Fatalf("add words: %v", err)
	}
	segs, err := b.WordSegments()
	if err != nil {
		t.Fatalf("word segments: %v", err)
	}
	if len(segs) != 1 || segs[0].StartMS != 6500 || segs[0].EndMS != 7000 {
		t.Fatalf("segments = %+v", segs)
	}
}

func TestWordsWithoutTimingAreSkipped(t *testing.T) {
	b := newBuilder(t, Word)
	words := []WordUnit{
		word("kept", 0, 0.2),
		{Text: "nostart", End: secs(0.5)},
		{Text: "noend", Start: secs(0.6)},
		{Text: "", Start: secs(0.7), End: secs(0.8)},
		word("also", 0.9, 1.0),
	}
	skipped, err := b.AddWordSegments(words, 0, "")
	if err != nil {
		t.Fatalf("add words: %v", err)
	}
	if skipped != 3 || b.Len() != 2 {
		t.Fatalf("skipped = %d, len = %d", skipped, b.Len())
	}
}

func TestChunkPunctuationFromGaps(t *testing.T) {
	cases := []struct {
		name string
		gap  int64
		want string
	}{
		{"long gap breaks paragraph", 1200, "one.\ntwo."},
		{"medium gap ends sentence", 600, "one. two."},
		{"short gap is a clause", 200, "one, two."},
		{"sentence threshold is exclusive", 400, "one, two."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBuilder(t, Chunk)
			mustChunk(t, b, "one", 0, 1000, "", nil)
			mustChunk(t, b, "two", 1000+tc.gap, 2000+tc.gap, "", nil)
			if got := b.Build(Simple); got != tc.want {
				t.Fatalf("build = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWordPunctuationFromGaps(t *testing.T) {
	b := newBuilder(t, Word)
	_, err := b.AddWordSegments([]WordUnit{
		word("so", 0, 0.2),
		word("we", 0.3, 0.4),   // 100ms
		word("went", 0.8, 1.0), // 400ms
		word("home", 1.9, 2.1), // 900ms
		word("then", 3.2, 3.4), // 1100ms
	}, 0, "")
	if err != nil {
		t.Fatalf("add words: %v", err)
	}
	want := "so we, went. home.\nthen."
	if got := b.Build(Simple); got != want {
		t.Fatalf("build = %q, want %q", got, want)
	}
	if got := b.Build(Raw); got != "so we went home then" {
		t.Fatalf("raw = %q", got)
	}
}

func TestPauseAlignmentToleranceIsStrict(t *testing.T) {
	build := func(pause int64) string {
		b := newBuilder(t, Chunk)
		mustChunk(t, b, "a", 0, 900, "", nil)
		mustChunk(t, b, "b", 1000, 1500, "", nil)
		b.AddPausePoint(pause)
		return b.Build(Simple)
	}
	if got := build(1149); got != "a.\nb." {
		t.Fatalf("pause within tolerance: %q", got)
	}
	if got := build(851); got != "a.\nb." {
		t.Fatalf("pause within tolerance before start: %q", got)
	}
	if got := build(1150); got != "a, b." {
		t.Fatalf("pause at tolerance boundary: %q", got)
	}
}

func TestBuildIsIdempotentAndReflectsLaterAppends(t *testing.T) {
	b := newBuilder(t, Chunk)
	mustChunk(t, b, "first", 0, 1000, "", conf(0.5))
	one := b.Build(Detailed)
	if two := b.Build(Detailed); one != two {
		t.Fatalf("build not idempotent: %q vs %q", one, two)
	}
	if b.Len() != 1 {
		t.Fatalf("build mutated segments")
	}
	mustChunk(t, b, "second", 1100, 2000, "", nil)
	if got := b.Build(Simple); got != "first, second." {
		t.Fatalf("build after append = %q", got)
	}
}

func TestEngineTrailingPunctuationIsNotDoubled(t *testing.T) {
	b := newBuilder(t, Chunk)
	mustChunk(t, b, "Hello there.", 0, 1000, "", nil)
	mustChunk(t, b, " How are you?", 3000, 4000, "", nil)
	mustChunk(t, b, "Fine!", 4100, 4500, "", nil)
	if got := b.Build(Simple); got != "Hello there.\nHow are you? Fine!" {
		t.Fatalf("build = %q", got)
	}
}

func TestDetailedSpeakerTurnsAndTimestamps(t *testing.T) {
	b := newBuilder(t, Chunk)
	mustChunk(t, b, "hi", 0, 500, "A", nil)
	mustChunk(t, b, "there", 600, 900, "A", nil)
	mustChunk(t, b, "yes", 1400, 1800, "B", nil)
	want := "[A]: hi [0.0s], there [0.6s].\n[B]: yes [1.4s]."
	if got := b.Build(Detailed); got != want {
		t.Fatalf("detailed = %q, want %q", got, want)
	}
	if got := b.Build(Simple); got != "hi, there. yes." {
		t.Fatalf("simple = %q", got)
	}
	if m := b.Metadata(); m.SpeakerChanges != 2 {
		t.Fatalf("speaker changes = %d", m.SpeakerChanges)
	}
}

func TestDetailedWordTimestamps(t *testing.T) {
	b := newBuilder(t, Word)
	if _, err := b.AddWordSegments([]WordUnit{word("hey", 0.25, 0.5)}, 1000, "spk1"); err != nil {
		t.Fatalf("add words: %v", err)
	}
	if got := b.Build(Detailed); got != "[spk1]: hey [1.25s]." {
		t.Fatalf("detailed = %q", got)
	}
}

func TestSpeakerChangesPerWordBatch(t *testing.T) {
	b := newBuilder(t, Word)
	batch := []WordUnit{word("a", 0, 0.1), word("b", 0.2, 0.3)}
	for _, spk := range []string{"A", "A", "B", ""} {
		if _, err := b.AddWordSegments(batch, 0, spk); err != nil {
			t.Fatalf("add words: %v", err)
		}
	}
	if m := b.Metadata(); m.SpeakerChanges != 2 {
		t.Fatalf("speaker changes = %d, want 2", m.SpeakerChanges)
	}
}

func TestMetadataDurationCoversSegments(t *testing.T) {
	b := newBuilder(t, Chunk)
	ends := []int64{30000, 45000, 12000}
	for i, end := range ends {
		mustChunk(t, b, "x", int64(i)*1000, end, "", nil)
	}
	m := b.Metadata()
	for _, end := range ends {
		if m.DurationSeconds*1000 < float64(end) {
			t.Fatalf("duration %v < end %d", m.DurationSeconds, end)
		}
	}
	if m.DurationSeconds != 45 || m.SegmentCount != 3 || m.Granularity != Chunk {
		t.Fatalf("metadata = %+v", m)
	}
}

func TestAverageConfidenceSkipsMissing(t *testing.T) {
	b := newBuilder(t, Chunk)
	mustChunk(t, b, "a", 0, 100, "", conf(0.9))
	mustChunk(t, b, "b", 200, 300, "", nil)
	mustChunk(t, b, "c", 400, 500, "", conf(0.7))
	got := b.Metadata().AverageConfidence
	if got == nil || math.Abs(*got-0.8) > 1e-9 {
		t.Fatalf("average confidence = %v, want 0.8", got)
	}
}

func TestPausePointsKeepInsertionOrder(t *testing.T) {
	b := newBuilder(t, Chunk)
	for _, p := range []int64{900, 100, 100} {
		b.AddPausePoint(p)
	}
	got := b.PausePoints()
	if len(got) != 3 || got[0] != 900 || got[1] != 100 || got[2] != 100 {
		t.Fatalf("pause points = %v", got)
	}
	if m := b.Metadata(); m.PauseCount != 3 {
		t.Fatalf("pause count = %d", m.PauseCount)
	}
}

func TestSegmentsForLLMChunkMode(t *testing.T) {
	b := newBuilder(t, Chunk)
	mustChunk(t, b, "a", 0, 1000, "", nil)
	mustChunk(t, b, "b", 1200, 2000, "", nil)
	mustChunk(t, b, "c", 3500, 4000, "", nil)
	b.AddPausePoint(1250)

	p := b.SegmentsForLLM()
	if len(p.Chunks) != 3 || p.Words != nil {
		t.Fatalf("payload = %+v", p)
	}
	if *p.Chunks[0].PauseAfterMS != 200 || !p.Chunks[0].IsMajorPause {
		t.Fatalf("aligned pause not major: %+v", p.Chunks[0])
	}
	if *p.Chunks[1].PauseAfterMS != 1500 || !p.Chunks[1].IsMajorPause {
		t.Fatalf("long gap not major: %+v", p.Chunks[1])
	}
	if p.Chunks[2].PauseAfterMS != nil || p.Chunks[2].IsMajorPause {
		t.Fatalf("last segment has a pause: %+v", p.Chunks[2])
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), `[{"text":"a"`) || !strings.Contains(string(data), `"pause_after_ms":null`) {
		t.Fatalf("json = %s", data)
	}
}

func TestSegmentsForLLMWordMode(t *testing.T) {
	b := newBuilder(t, Word)
	if _, err := b.AddWordSegments([]WordUnit{{Text: "hi", Start: secs(0), End: secs(0.2), Confidence: conf(0.9)}}, 0, ""); err != nil {
		t.Fatalf("add words: %v", err)
	}
	data, err := json.Marshal(b.SegmentsForLLM())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"word":"hi","start_time_ms":0,"end_time_ms":200,"speaker":null,"confidence":0.9}]`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}
}

func TestTwoChunkWordScenario(t *testing.T) {
	b := newBuilder(t, Word)
	b.AddPausePoint(29800)
	if _, err := b.AddWordSegments([]WordUnit{word("hello", 0.0, 0.4), word("world", 0.5, 0.9)}, 0, ""); err != nil {
		t.Fatalf("chunk 1: %v", err)
	}
	if _, err := b.AddWordSegments([]WordUnit{word("there", 0.0, 0.3)}, 30000, ""); err != nil {
		t.Fatalf("chunk 2: %v", err)
	}
	if got := b.Build(Simple); got != "hello world.\nthere." {
		t.Fatalf("build = %q", got)
	}
}

func TestParseHelpers(t *testing.T) {
	if g, err := ParseGranularity(" Word "); err != nil || g != Word {
		t.Fatalf("parse granularity: %v %v", g, err)
	}
	if _, err := ParseFormat("markdown"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestAddChunkUnitOffsetsRelativeTimes(t *testing.T) {
	b := newBuilder(t, Chunk)
	ok, err := b.AddChunkUnit(WordUnit{Text: "phrase", Start: secs(2), End: secs(4.5), Confidence: conf(0.4)}, 30000, "")
	if err != nil || !ok {
		t.Fatalf("add chunk unit: %v %v", ok, err)
	}
	if ok, _ := b.AddChunkUnit(WordUnit{Text: "untimed"}, 30000, ""); ok {
		t.Fatalf("untimed unit accepted")
	}
	segs, _ := b.ChunkSegments()
	if len(segs) != 1 || segs[0].StartMS != 32000 || segs[0].EndMS != 34500 {
		t.Fatalf("segments = %+v", segs)
	}
	w := newBuilder(t, Word)
	if _, err := w.AddChunkUnit(WordUnit{Text: "x", Start: secs(0), End: secs(1)}, 0, ""); !errors.Is(err, ErrGranularityMismatch) {
		t.Fatalf("word builder accepted chunk unit: %v", err)
	}
}

func TestSegmentTextIsTrimmed(t *testing.T) {
	b := newBuilder(t, Chunk)
	mustChunk(t, b, " hello ", 0, 1000, "", nil)
	mustChunk(t, b, " why? ", 1100, 2000, "", nil)
	mustChunk(t, b, "ok", 2100, 3000, "", nil)
	if got := b.Build(Raw); got != "hello why? ok" {
		t.Fatalf("raw = %q", got)
	}
	segs, err := b.ChunkSegments()
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if segs[0].Text != "hello" {
		t.Fatalf("stored text = %q", segs[0].Text)
	}

	w := newBuilder(t, Word)
	skipped, err := w.AddWordSegments([]WordUnit{word(" so ", 0, 0.2), word("  ", 0.3, 0.4), word("far", 0.5, 0.7)}, 0, "")
	if err != nil {
		t.Fatalf("add words: %v", err)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want the blank word", skipped)
	}
	if got := w.Build(Raw); got != "so far" {
		t.Fatalf("word raw = %q", got)
	}
}
