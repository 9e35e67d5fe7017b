package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"voxstruct/internal/audio"
	"voxstruct/internal/config"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// coquiEngine runs the Coqui STT command-line client once per chunk and
// keeps its --json output as the payload.
type coquiEngine struct {
	command string
	model   string
	scorer  string
	extra   []string
	logger  logrus.FieldLogger
}

func newCoqui(cfg *config.Config, logger logrus.FieldLogger) (Engine, error) {
	command, err := exec.LookPath(cfg.Coqui.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: coqui command %q: %v", ErrModelLoad, cfg.Coqui.Command, err)
	}
	if _, err := os.Stat(cfg.Coqui.Model); err != nil {
		return nil, fmt.Errorf("%w: coqui model %s: %v", ErrModelLoad, cfg.Coqui.Model, err)
	}
	if cfg.Coqui.Scorer != "" {
		if _, err := os.Stat(cfg.Coqui.Scorer); err != nil {
			return nil, fmt.Errorf("%w: coqui scorer %s: %v", ErrModelLoad, cfg.Coqui.Scorer, err)
		}
	}
	extra, err := parseArgs(cfg.Coqui.Args)
	if err != nil {
		return nil, fmt.Errorf("%w: coqui.args: %v", ErrModelLoad, err)
	}
	return &coquiEngine{
		command: command,
		model:   cfg.Coqui.Model,
		scorer:  cfg.Coqui.Scorer,
		extra:   extra,
		logger:  logger,
	}, nil
}

func (e *coquiEngine) Name() string { return Coqui }

func (e *coquiEngine) Transcribe(ctx context.Context, c audio.Chunk) NativeResult {
	var payload json.RawMessage
	err := audio.WithTempWAV(c, func(path string) error {
		out, err := e.run(ctx, path)
		payload = out
		return err
	})
	if err != nil {
		return Failed(Coqui, fmt.Errorf("coqui %s: %w", c, err))
	}
	return NativeResult{Engine: Coqui, Payload: payload}
}

func (e *coquiEngine) run(ctx context.Context, wavPath string) (json.RawMessage, error) {
	args := []string{"--model", e.model}
	if e.scorer != "" {
		args = append(args, "--scorer", e.scorer)
	}
	args = append(args, "--audio", wavPath, "--json")
	args = append(args, e.extra...)

	cmd := exec.CommandContext(ctx, e.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, lastLine(msg))
		}
		return nil, err
	}
	if stderr.Len() > 0 {
		e.logger.Debugf("stt stderr: %s", strings.TrimSpace(stderr.String()))
	}
	// the client may print version banners before the JSON document
	out := stdout.Bytes()
	if i := bytes.IndexByte(out, '{'); i >= 0 {
		out = bytes.TrimSpace(out[i:])
	}
	if !json.Valid(out) {
		return nil, errors.New("stt produced no JSON output")
	}
	return json.RawMessage(out), nil
}

func (e *coquiEngine) Close() error { return nil }

// parseArgs splits a shell-style argument string.
func parseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
