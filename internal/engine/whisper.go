//go:build whisper

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"voxstruct/internal/audio"
	"voxstruct/internal/config"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/sirupsen/logrus"
)

const whisperCompiled = true

// whisperEngine runs whisper.cpp in-process with token timestamps enabled.
type whisperEngine struct {
	model    whisper.Model
	language string
	threads  int
	logger   logrus.FieldLogger
}

func newWhisper(cfg *config.Config, logger logrus.FieldLogger) (Engine, error) {
	path := cfg.Whisper.ModelPath
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: whisper model %s: %v", ErrModelLoad, path, err)
	}
	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load whisper model: %v", ErrModelLoad, err)
	}
	logger.Infof("whisper model loaded: %s", path)
	return &whisperEngine{
		model:    model,
		language: strings.TrimSpace(cfg.Engine.Language),
		threads:  cfg.Whisper.Threads,
		logger:   logger,
	}, nil
}

func (w *whisperEngine) Name() string { return Whisper }

func (w *whisperEngine) Transcribe(_ context.Context, c audio.Chunk) NativeResult {
	var res *WhisperResult
	err := audio.WithTempWAV(c, func(path string) error {
		buf, err := audio.ReadWAVFile(path)
		if err != nil {
			return err
		}
		res, err = w.process(buf.Float32())
		return err
	})
	if err != nil {
		return Failed(Whisper, fmt.Errorf("whisper %s: %w", c, err))
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return Failed(Whisper, err)
	}
	return NativeResult{Engine: Whisper, Payload: payload}
}

func (w *whisperEngine) process(samples []float32) (*WhisperResult, error) {
	ctx, err := w.model.NewContext()
	if err != nil {
		return nil, err
	}
	if w.threads > 0 {
		ctx.SetThreads(uint(w.threads))
	}
	ctx.SetTokenTimestamps(true)
	if w.language != "" {
		if err := ctx.SetLanguage(w.language); err != nil {
			w.logger.Warnf("set language: %v", err)
		}
	}
	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return nil, err
	}

	res := &WhisperResult{Language: ctx.DetectedLanguage(), Segments: []WhisperSegment{}}
	var text strings.Builder
	for {
		seg, err := ctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		pieces := make([]wordPiece, 0, len(seg.Tokens))
		for _, tok := range seg.Tokens {
			if !ctx.IsText(tok) {
				continue
			}
			pieces = append(pieces, wordPiece{Text: tok.Text, P: tok.P, Start: tok.Start, End: tok.End})
		}
		res.Segments = append(res.Segments, WhisperSegment{
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
			Text:  strings.TrimSpace(seg.Text),
			Words: joinPieces(pieces),
		})
		text.WriteString(seg.Text)
		if !strings.HasSuffix(seg.Text, " ") {
			text.WriteByte(' ')
		}
	}
	res.Text = strings.TrimSpace(text.String())
	return res, nil
}

func (w *whisperEngine) Close() error {
	return w.model.Close()
}
