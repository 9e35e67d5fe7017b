package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// CommandConfig configures a supervisor that pipes the prompt through a
// local program (an ollama or llm CLI, a script) and reads stdout.
type CommandConfig struct {
	Command   string
	Args      string // shell-style
	Model     string
	Timeout   time.Duration
	RedactPII bool
}

// Command runs one process per Improve call.
type Command struct {
	cfg    CommandConfig
	args   []string
	logger logrus.FieldLogger
}

func NewCommand(cfg CommandConfig, logger logrus.FieldLogger) (*Command, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("%w: no supervisor.command configured", ErrUnavailable)
	}
	args, err := ParseArgs(cfg.Args)
	if err != nil {
		return nil, fmt.Errorf("supervisor.args: %w", err)
	}
	return &Command{cfg: cfg, args: args, logger: logger}, nil
}

func (c *Command) Name() string { return "command" }

// Verify checks that the command resolves on PATH.
func (c *Command) Verify(context.Context) error {
	if _, err := exec.LookPath(c.cfg.Command); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Command) Improve(ctx context.Context, r Request) (string, error) {
	r = prepare(r, c.cfg.RedactPII)
	runCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.cfg.Command, c.args...)
	cmd.Stdin = strings.NewReader(buildPrompt(r))
	cmd.Env = append(os.Environ(),
		"VOXSTRUCT_MODEL="+c.cfg.Model,
		"VOXSTRUCT_LANGUAGE="+r.Language,
		"VOXSTRUCT_DURATION="+strconv.FormatFloat(r.DurationSec, 'f', 1, 64),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if stderr.Len() > 0 {
		c.logger.Debugf("supervisor stderr: %s", strings.TrimSpace(stderr.String()))
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("supervisor command timed out after %s", c.cfg.Timeout)
		}
		return "", fmt.Errorf("supervisor command failed: %w", err)
	}
	return stdout.String(), nil
}

// ParseArgs splits a shell-style argument string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}
