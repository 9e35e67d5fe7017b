// Package output persists a run: the built transcript, the final
// (supervised) transcript, run metadata and, for word runs, the word
// timestamp export.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voxstruct/internal/pipeline"
	"voxstruct/internal/transcript"
)

// Metadata is the persisted run record.
type Metadata struct {
	RunID          string    `json:"run_id"`
	CreatedAt      time.Time `json:"created_at"`
	AudioFile      string    `json:"audio_file"`
	OutputBasename string    `json:"output_basename"`
	Engine         string    `json:"engine"`
	Model          string    `json:"model"`
	Language       string    `json:"language,omitempty"`
	LLMModel       *string   `json:"llm_model"`

	PauseTimestamps []float64 `json:"pause_timestamps"`
	ChunkCount      int       `json:"chunk_count"`
	FailedChunks    int       `json:"failed_chunks"`
	DegradedChunks  int       `json:"degraded_chunks"`
	DurationMS      int64     `json:"duration"`
	SampleRate      int       `json:"sample_rate"`
	Channels        int       `json:"channels"`
	SourceRate      int       `json:"source_sample_rate"`
	SourceChannels  int       `json:"source_channels"`

	TimestampGranularity      transcript.Granularity `json:"timestamp_granularity"`
	TranscriptDurationSeconds float64                `json:"transcript_duration_seconds"`
	SegmentCount              int                    `json:"segment_count"`
	AverageConfidence         *float64               `json:"average_confidence"`

	Supervised    bool   `json:"supervised"`
	SupervisorErr string `json:"supervisor_error,omitempty"`
	PauseErr      string `json:"pause_error,omitempty"`

	Transcript transcript.Metadata `json:"transcript"`
}

// NewMetadata builds the run record for audioFile from res.
func NewMetadata(audioFile, base string, res *pipeline.Result) Metadata {
	tm := res.Builder.Metadata()
	m := Metadata{
		RunID:          res.RunID,
		CreatedAt:      res.StartedAt.UTC(),
		AudioFile:      audioFile,
		OutputBasename: base,
		Engine:         res.Engine,
		Model:          res.Model,
		Language:       res.Language,

		PauseTimestamps: res.Pauses,
		ChunkCount:      res.ChunkCount,
		FailedChunks:    res.FailedChunks,
		DegradedChunks:  res.DegradedChunks,
		DurationMS:      res.DurationMS,
		SampleRate:      res.SampleRate,
		Channels:        res.Channels,
		SourceRate:      res.SourceRate,
		SourceChannels:  res.SourceChannels,

		TimestampGranularity:      tm.Granularity,
		TranscriptDurationSeconds: tm.DurationSeconds,
		SegmentCount:              tm.SegmentCount,
		AverageConfidence:         tm.AverageConfidence,

		Supervised: res.Supervised,
		Transcript: tm,
	}
	if res.LLMModel != "" {
		llm := res.LLMModel
		m.LLMModel = &llm
	}
	if m.PauseTimestamps == nil {
		m.PauseTimestamps = []float64{}
	}
	if res.SupervisorErr != nil {
		m.SupervisorErr = res.SupervisorErr.Error()
	}
	if res.PauseErr != nil {
		m.PauseErr = res.PauseErr.Error()
	}
	return m
}

// Paths lists the files written for a run.
type Paths struct {
	Raw        string
	Final      string
	Metadata   string
	Timestamps string // empty for chunk runs
}

// Basename derives the output name from the input file.
func Basename(audioFile string) string {
	base := strings.TrimSuffix(filepath.Base(audioFile), filepath.Ext(audioFile))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "transcription_output"
	}
	return base
}

// Write stores res under dir.
func Write(dir, audioFile string, res *pipeline.Result) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, err
	}
	base := Basename(audioFile)
	paths := Paths{
		Raw:      filepath.Join(dir, fmt.Sprintf("raw_transcript_%s.txt", base)),
		Final:    filepath.Join(dir, fmt.Sprintf("transcript_%s.md", base)),
		Metadata: filepath.Join(dir, fmt.Sprintf("metadata_%s.json", base)),
	}
	if err := os.WriteFile(paths.Raw, []byte(res.Transcript), 0o644); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.Final, []byte(ensureNewline(res.Final)), 0o644); err != nil {
		return Paths{}, err
	}
	if err := writeJSON(paths.Metadata, NewMetadata(audioFile, base, res)); err != nil {
		return Paths{}, err
	}
	if res.Builder.Granularity() == transcript.Word {
		paths.Timestamps = filepath.Join(dir, fmt.Sprintf("timestamps_%s.json", base))
		if err := writeJSON(paths.Timestamps, res.Builder.SegmentsForLLM()); err != nil {
			return Paths{}, err
		}
	}
	return paths, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
