// Package supervisor hands an assembled transcript to an external
// reformatter, either an OpenAI-compatible chat endpoint or a local command.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voxstruct/internal/config"

	"github.com/sirupsen/logrus"
)

// ErrUnavailable is returned when a supervisor cannot be used for this run.
var ErrUnavailable = errors.New("supervisor unavailable")

// Request carries the raw transcript and the context a supervisor may use.
// Zero fields are omitted from the prompt.
type Request struct {
	Transcript  string
	Pauses      []float64 // seconds
	DurationSec float64
	Language    string
	Speakers    int
}

// Supervisor returns a restructured transcript.
type Supervisor interface {
	Name() string
	Improve(ctx context.Context, req Request) (string, error)
}

// Verifier is implemented by supervisors that can check their model before
// a run.
type Verifier interface {
	Verify(ctx context.Context) error
}

// New builds the configured supervisor. It returns nil for provider "none".
func New(cfg *config.Config, logger logrus.FieldLogger) (Supervisor, error) {
	timeout := time.Duration(cfg.Supervisor.TimeoutSec * float64(time.Second))
	switch p := strings.ToLower(strings.TrimSpace(cfg.Supervisor.Provider)); p {
	case "", "none":
		return nil, nil
	case "openai":
		sup, err := NewOpenAI(OpenAIConfig{
			BaseURL:     cfg.Supervisor.BaseURL,
			APIKey:      apiKey(cfg.Supervisor.APIKeyEnv),
			Model:       cfg.Supervisor.Model,
			Timeout:     timeout,
			Temperature: cfg.Supervisor.Temperature,
			MaxTokens:   cfg.Supervisor.MaxTokens,
			RedactPII:   cfg.Supervisor.RedactPII,
		}, logger)
		if err != nil {
			return nil, err
		}
		return sup, nil
	case "command":
		sup, err := NewCommand(CommandConfig{
			Command:   cfg.Supervisor.Command,
			Args:      cfg.Supervisor.Args,
			Model:     cfg.Supervisor.Model,
			Timeout:   timeout,
			RedactPII: cfg.Supervisor.RedactPII,
		}, logger)
		if err != nil {
			return nil, err
		}
		return sup, nil
	default:
		return nil, fmt.Errorf("unknown supervisor provider %q (none, openai, command)", p)
	}
}

// ImproveOrRaw runs s and falls back to the raw transcript on any failure.
// The returned error, if any, is informational.
func ImproveOrRaw(ctx context.Context, s Supervisor, req Request) (string, error) {
	if s == nil {
		return req.Transcript, nil
	}
	out, err := s.Improve(ctx, req)
	if err != nil {
		return req.Transcript, fmt.Errorf("%s supervisor: %w", s.Name(), err)
	}
	if strings.TrimSpace(out) == "" {
		return req.Transcript, fmt.Errorf("%s supervisor returned empty output: %w", s.Name(), ErrUnavailable)
	}
	return strings.TrimSpace(out), nil
}
