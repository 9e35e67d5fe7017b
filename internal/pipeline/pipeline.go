// Package pipeline runs one recording through chunking, recognition,
// normalization and transcript assembly, then the optional supervisor.
// Chunks are processed strictly in order; a failed chunk is logged and
// skipped.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voxstruct/internal/audio"
	"voxstruct/internal/config"
	"voxstruct/internal/engine"
	"voxstruct/internal/normalize"
	"voxstruct/internal/pause"
	"voxstruct/internal/supervisor"
	"voxstruct/internal/transcript"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Pipeline holds the collaborators for one run configuration.
type Pipeline struct {
	Engine     engine.Engine
	Supervisor supervisor.Supervisor
	Chunker    *audio.Chunker
	Detector   *pause.Detector
	Normalizer *normalize.Normalizer

	Granularity transcript.Granularity
	Format      transcript.Format
	Thresholds  transcript.Thresholds
	Speaker     string
	// VerifySupervisor checks the supervisor's model before any chunk is
	// processed and disables supervision for the run when that fails.
	VerifySupervisor bool

	// Model and LLMModel are reported in run metadata.
	Model    string
	LLMModel string

	logger logrus.FieldLogger
}

// Result is what a run produced.
type Result struct {
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration

	Engine   string
	Model    string
	LLMModel string
	Language string

	Transcript string // built from segments
	Final      string // supervisor output, or Transcript on fallback
	Supervised bool
	// SupervisorErr records why the supervisor was skipped or failed.
	SupervisorErr error
	// PauseErr records a failed silence analysis; Pauses is then empty.
	PauseErr error

	Builder *transcript.Builder
	Pauses  []float64 // pause midpoints in seconds

	ChunkCount     int
	FailedChunks   int
	DegradedChunks int

	DurationMS     int64
	SampleRate     int
	Channels       int
	SourceRate     int
	SourceChannels int
}

// New wires a pipeline from configuration around eng and sup. sup may be nil.
func New(cfg *config.Config, eng engine.Engine, sup supervisor.Supervisor, logger logrus.FieldLogger) (*Pipeline, error) {
	g, err := transcript.ParseGranularity(cfg.Engine.Granularity)
	if err != nil {
		return nil, err
	}
	f, err := transcript.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	analyzer, err := Analyzer(cfg)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		Engine:     eng,
		Supervisor: sup,
		Chunker:    audio.NewChunker(int64(cfg.Audio.ChunkMS)),
		Detector:   pause.NewDetector(analyzer, cfg.Pauses.SilenceThreshDB, cfg.Pauses.MinSilenceMS, logger),
		Normalizer: normalize.New(logger),

		Granularity: g,
		Format:      f,
		Thresholds: transcript.Thresholds{
			ParagraphGapMS:    cfg.Punctuation.ParagraphGapMS,
			SentenceGapMS:     cfg.Punctuation.SentenceGapMS,
			WordSentenceGapMS: cfg.Punctuation.WordSentenceGapMS,
			WordCommaGapMS:    cfg.Punctuation.WordCommaGapMS,
			PauseToleranceMS:  cfg.Punctuation.PauseToleranceMS,
		},
		VerifySupervisor: cfg.Supervisor.Verify,
		Model:            ModelName(cfg),
		logger:           logger,
	}
	if sup != nil {
		p.LLMModel = cfg.Supervisor.Model
	}
	return p, nil
}

// Analyzer returns the silence analyzer named by pauses.analyzer.
func Analyzer(cfg *config.Config) (pause.SilenceAnalyzer, error) {
	switch strings.ToLower(cfg.Pauses.Analyzer) {
	case "", "energy":
		return pause.EnergyAnalyzer{}, nil
	case "vad":
		return pause.VADAnalyzer{Aggressiveness: cfg.Pauses.VADAggressiveness, FrameMS: cfg.Pauses.VADFrameMS}, nil
	default:
		return nil, fmt.Errorf("unknown pause analyzer %q (energy, vad)", cfg.Pauses.Analyzer)
	}
}

// ModelName describes the model behind the configured engine.
func ModelName(cfg *config.Config) string {
	switch strings.ToLower(cfg.Engine.Name) {
	case engine.Whisper:
		return cfg.Whisper.ModelPath
	case engine.Vosk:
		return cfg.Vosk.URL
	case engine.Coqui:
		return cfg.Coqui.Model
	default:
		return ""
	}
}

// Run transcribes buf. Only a missing buffer or a builder contract violation
// aborts the run; engine and supervisor failures are recorded in Result.
func (p *Pipeline) Run(ctx context.Context, buf *audio.Buffer) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Engine:    p.Engine.Name(),
		Model:     p.Model,
		LLMModel:  p.LLMModel,
	}
	log := p.logger.WithFields(logrus.Fields{"run_id": res.RunID, "engine": res.Engine})

	chunks, err := p.Chunker.Chunks(buf)
	if err != nil {
		return nil, err
	}
	res.ChunkCount = len(chunks)
	res.DurationMS = buf.DurationMS()
	res.SampleRate, res.Channels = buf.SampleRate, buf.Channels
	res.SourceRate, res.SourceChannels = buf.SourceRate, buf.SourceChannels

	sup := p.verifiedSupervisor(ctx, log, res)

	builder, err := transcript.NewBuilder(p.Granularity, p.Thresholds)
	if err != nil {
		return nil, err
	}
	res.Builder = builder

	// analysis failure is non-fatal; punctuation just loses pause alignment
	res.Pauses, res.PauseErr = p.Detector.DetectPauses(buf)
	if res.PauseErr != nil {
		log.Warnf("pause analysis failed: %v", res.PauseErr)
	}
	for _, ms := range pause.MidpointsMS(res.Pauses) {
		builder.AddPausePoint(ms)
	}
	log.Infof("%d chunks, %d pauses, granularity %s", len(chunks), len(res.Pauses), p.Granularity)

	for _, c := range chunks {
		clog := log.WithFields(logrus.Fields{"chunk": c.Index, "start_ms": c.StartMS})
		native := engine.Transcribe(ctx, p.Engine, c)
		unit := p.Normalizer.Normalize(p.Engine.Name(), native, p.Granularity, c.Duration())
		if unit.Failed() {
			res.FailedChunks++
			clog.Errorf("chunk skipped: %v", unit.Err)
			continue
		}
		if unit.Degraded {
			res.DegradedChunks++
		}
		if res.Language == "" {
			res.Language = unit.Language
		}
		if err := p.fold(builder, unit, c); err != nil {
			return nil, fmt.Errorf("pipeline aborted at %s: %w", c, err)
		}
		clog.Debugf("%d units", len(unit.Units))
	}
	if res.FailedChunks > 0 {
		log.Warnf("%d of %d chunks failed", res.FailedChunks, res.ChunkCount)
	}

	res.Transcript = builder.Build(p.Format)
	res.Final = res.Transcript
	if sup != nil && res.Transcript != "" {
		speakers := 0
		if p.Speaker != "" {
			speakers = 1
		}
		final, err := supervisor.ImproveOrRaw(ctx, sup, supervisor.Request{
			Transcript:  res.Transcript,
			Pauses:      res.Pauses,
			DurationSec: float64(res.DurationMS) / 1000,
			Language:    res.Language,
			Speakers:    speakers,
		})
		res.Final = final
		if err != nil {
			res.SupervisorErr = err
			log.Warnf("using raw transcript: %v", err)
		} else {
			res.Supervised = true
		}
	}
	res.Elapsed = time.Since(res.StartedAt)
	log.WithField("elapsed", res.Elapsed.Round(time.Millisecond)).Info("run finished")
	return res, nil
}

func (p *Pipeline) verifiedSupervisor(ctx context.Context, log logrus.FieldLogger, res *Result) supervisor.Supervisor {
	if p.Supervisor == nil || !p.VerifySupervisor {
		return p.Supervisor
	}
	v, ok := p.Supervisor.(supervisor.Verifier)
	if !ok {
		return p.Supervisor
	}
	if err := v.Verify(ctx); err != nil {
		res.SupervisorErr = err
		res.LLMModel = ""
		log.Warnf("supervisor disabled: %v", err)
		return nil
	}
	return p.Supervisor
}

func (p *Pipeline) fold(b *transcript.Builder, unit normalize.RecognitionUnit, c audio.Chunk) error {
	if p.Granularity == transcript.Word {
		_, err := b.AddWordSegments(unit.Units, c.StartMS, p.Speaker)
		return err
	}
	for _, u := range unit.Units {
		if _, err := b.AddChunkUnit(u, c.StartMS, p.Speaker); err != nil {
			return err
		}
	}
	return nil
}
