package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"voxstruct/internal/config"
	"voxstruct/internal/engine"
	"voxstruct/internal/pause"
	"voxstruct/internal/pipeline"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks for the configured engine, or every engine
// when all is set.
func Run(ctx context.Context, cfg *config.Config, all bool) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkExecutable("ffmpeg", cfg.Audio.FFmpegPath),
		checkAnalyzer(cfg),
	}
	names := []string{strings.ToLower(cfg.Engine.Name)}
	if all {
		names = []string{engine.Whisper, engine.Vosk, engine.Coqui}
	}
	for _, name := range names {
		results = append(results, checkEngine(ctx, cfg, name)...)
	}
	results = append(results, checkSupervisor(cfg))
	return results
}

func checkEngine(ctx context.Context, cfg *config.Config, name string) []Result {
	switch name {
	case engine.Whisper:
		compiled := Result{Name: "whisper", Pass: engine.Compiled(engine.Whisper), Detail: "compiled in"}
		if !compiled.Pass {
			compiled.Detail = "not compiled in (build with -tags whisper)"
		}
		return []Result{compiled, checkFile("whisper model", cfg.Whisper.ModelPath)}
	case engine.Vosk:
		return []Result{checkVosk(ctx, cfg.Vosk.URL)}
	case engine.Coqui:
		out := []Result{checkExecutable("coqui.command", cfg.Coqui.Command), checkFile("coqui model", cfg.Coqui.Model)}
		if cfg.Coqui.Scorer != "" {
			out = append(out, checkFile("coqui scorer", cfg.Coqui.Scorer))
		}
		return out
	default:
		return []Result{{Name: "engine", Pass: false, Detail: fmt.Sprintf("unknown engine %q", name)}}
	}
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkExecutable(label, cmd string) Result {
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; point it at an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkVosk(ctx context.Context, url string) Result {
	if url == "" {
		return Result{Name: "vosk server", Pass: false, Detail: "vosk.url not set"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := engine.ProbeVosk(ctx, url); err != nil {
		return Result{Name: "vosk server", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "vosk server", Pass: true, Detail: url}
}

func checkAnalyzer(cfg *config.Config) Result {
	if _, err := pipeline.Analyzer(cfg); err != nil {
		return Result{Name: "pauses", Pass: false, Detail: err.Error()}
	}
	if !strings.EqualFold(cfg.Pauses.Analyzer, "vad") {
		return Result{Name: "pauses", Pass: true, Detail: "energy analyzer"}
	}
	if err := pause.CheckVADFrame(cfg.Audio.SampleRate, cfg.Pauses.VADFrameMS); err != nil {
		return Result{Name: "pauses", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "pauses", Pass: true, Detail: fmt.Sprintf("webrtc vad, mode %d", cfg.Pauses.VADAggressiveness)}
}

func checkSupervisor(cfg *config.Config) Result {
	label := "supervisor"
	switch strings.ToLower(cfg.Supervisor.Provider) {
	case "", "none":
		return Result{Name: label, Pass: true, Detail: "disabled"}
	case "openai":
		if strings.TrimSpace(os.Getenv(cfg.Supervisor.APIKeyEnv)) == "" {
			return Result{Name: label, Pass: false, Detail: fmt.Sprintf("$%s is empty", cfg.Supervisor.APIKeyEnv)}
		}
		return Result{Name: label, Pass: true, Detail: fmt.Sprintf("openai %s via %s", cfg.Supervisor.Model, cfg.Supervisor.BaseURL)}
	case "command":
		return checkExecutable(label, cfg.Supervisor.Command)
	default:
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("unknown provider %q", cfg.Supervisor.Provider)}
	}
}
