package output

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxstruct/internal/pipeline"
	"voxstruct/internal/supervisor"
	"voxstruct/internal/transcript"
)

func wordResult(t *testing.T) *pipeline.Result {
	t.Helper()
	b, err := transcript.NewBuilder(transcript.Word, transcript.DefaultThresholds())
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	start, end := 100*time.Millisecond, 400*time.Millisecond
	conf := 0.9
	if _, err := b.AddWordSegments([]transcript.WordUnit{{Text: "hi", Start: &start, End: &end, Confidence: &conf}}, 30000, ""); err != nil {
		t.Fatalf("add words: %v", err)
	}
	b.AddPausePoint(29800)
	return &pipeline.Result{
		RunID:         "run-1",
		StartedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Engine:        "vosk",
		Model:         "ws://127.0.0.1:2700",
		Transcript:    b.Build(transcript.Simple),
		Final:         b.Build(transcript.Simple),
		Builder:       b,
		Pauses:        []float64{29.8},
		ChunkCount:    2,
		FailedChunks:  1,
		DurationMS:    60000,
		SampleRate:    16000,
		Channels:      1,
		SupervisorErr: supervisor.ErrUnavailable,
		PauseErr:      errors.New("detect silence: vad init"),
	}
}

func TestWriteWordRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := Write(dir, "/recordings/standup.m4a", wordResult(t))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(paths.Raw) != "raw_transcript_standup.txt" || filepath.Base(paths.Final) != "transcript_standup.md" {
		t.Fatalf("paths = %+v", paths)
	}

	raw, _ := os.ReadFile(paths.Raw)
	if string(raw) != "hi." {
		t.Fatalf("raw = %q", raw)
	}

	var meta map[string]any
	data, _ := os.ReadFile(paths.Metadata)
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("metadata json: %v", err)
	}
	if meta["timestamp_granularity"] != "word" || meta["chunk_count"] != float64(2) || meta["llm_model"] != nil {
		t.Fatalf("metadata = %v", meta)
	}
	if meta["supervisor_error"] != supervisor.ErrUnavailable.Error() {
		t.Fatalf("supervisor_error = %v", meta["supervisor_error"])
	}
	if meta["pause_error"] != "detect silence: vad init" {
		t.Fatalf("pause_error = %v", meta["pause_error"])
	}
	inner, ok := meta["transcript"].(map[string]any)
	if !ok || inner["pause_count"] != float64(1) || inner["segment_count"] != float64(1) {
		t.Fatalf("transcript metadata = %v", meta["transcript"])
	}

	var words []transcript.WordSegment
	data, _ = os.ReadFile(paths.Timestamps)
	if err := json.Unmarshal(data, &words); err != nil {
		t.Fatalf("timestamps json: %v", err)
	}
	if len(words) != 1 || words[0].Word != "hi" || words[0].StartMS != 30100 || words[0].EndMS != 30400 || words[0].Speaker != nil {
		t.Fatalf("words = %+v", words)
	}
}

func TestWriteChunkRunSkipsTimestamps(t *testing.T) {
	b, _ := transcript.NewBuilder(transcript.Chunk, transcript.DefaultThresholds())
	if err := b.AddChunkSegment("hello", 0, 30000, "", nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	res := &pipeline.Result{Builder: b, Transcript: "hello.", Final: "# Hello\n\nHello."}
	paths, err := Write(t.TempDir(), "talk.wav", res)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if paths.Timestamps != "" {
		t.Fatalf("chunk run wrote timestamps: %s", paths.Timestamps)
	}
	final, _ := os.ReadFile(paths.Final)
	if string(final) != "# Hello\n\nHello.\n" {
		t.Fatalf("final = %q", final)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(paths.Raw), "timestamps_talk.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("unexpected timestamps file: %v", err)
	}
}

func TestBasename(t *testing.T) {
	cases := map[string]string{
		"/a/b/interview.mp3": "interview",
		"clip.tar.gz":        "clip.tar",
		"noext":              "noext",
		"":                   "transcription_output",
	}
	for in, want := range cases {
		if got := Basename(in); got != want {
			t.Fatalf("Basename(%q) = %q, want %q", in, got, want)
		}
	}
}
