package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxstruct/internal/config"

	"github.com/gorilla/websocket"
)

func TestCheckExecutable(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "stt")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if r := checkExecutable("coqui.command", script); r.Pass || !strings.Contains(r.Detail, "not executable") {
		t.Fatalf("expected not executable, got %+v", r)
	}
	if err := os.Chmod(script, 0o755); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if r := checkExecutable("coqui.command", script); !r.Pass {
		t.Fatalf("expected pass, got %+v", r)
	}
	if r := checkExecutable("coqui.command", dir+"/"); r.Pass || !strings.Contains(r.Detail, "directory") {
		t.Fatalf("expected directory failure, got %+v", r)
	}
	if r := checkExecutable("coqui.command", ""); r.Pass {
		t.Fatalf("empty command should fail")
	}
	if r := checkExecutable("ffmpeg", "definitely-not-a-real-binary-xyz"); r.Pass {
		t.Fatalf("missing binary should fail")
	}
}

func TestCheckVosk(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if r := checkVosk(context.Background(), url); !r.Pass {
		t.Fatalf("expected reachable server, got %+v", r)
	}
	srv.Close()
	if r := checkVosk(context.Background(), url); r.Pass {
		t.Fatalf("expected closed server to fail")
	}
	if r := checkVosk(context.Background(), ""); r.Pass {
		t.Fatalf("expected empty url to fail")
	}
}

func TestCheckSupervisor(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if r := checkSupervisor(cfg); !r.Pass || r.Detail != "disabled" {
		t.Fatalf("none provider: %+v", r)
	}

	cfg.Supervisor.Provider = "openai"
	cfg.Supervisor.APIKeyEnv = "VOXSTRUCT_TEST_KEY"
	t.Setenv("VOXSTRUCT_TEST_KEY", "")
	if r := checkSupervisor(cfg); r.Pass {
		t.Fatalf("expected missing key to fail")
	}
	t.Setenv("VOXSTRUCT_TEST_KEY", "sk-test")
	if r := checkSupervisor(cfg); !r.Pass {
		t.Fatalf("expected key to pass: %+v", r)
	}

	cfg.Supervisor.Provider = "bogus"
	if r := checkSupervisor(cfg); r.Pass {
		t.Fatalf("unknown provider should fail")
	}
}

func TestRunCoversEveryEngine(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Audio.FFmpegPath = "definitely-not-a-real-binary-xyz"
	cfg.Vosk.URL = ""
	cfg.Paths.ConfigPath = filepath.Join(t.TempDir(), "missing.toml")

	names := map[string]bool{}
	for _, r := range Run(context.Background(), cfg, true) {
		names[r.Name] = true
	}
	for _, want := range []string{"config path", "ffmpeg", "pauses", "whisper", "whisper model", "vosk server", "coqui.command", "coqui model", "supervisor"} {
		if !names[want] {
			t.Fatalf("missing check %q in %v", want, names)
		}
	}

	only := Run(context.Background(), cfg, false)
	for _, r := range only {
		if r.Name == "vosk server" || r.Name == "coqui model" {
			t.Fatalf("configured whisper run should skip %q", r.Name)
		}
	}
}

func TestCheckAnalyzer(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Pauses.Analyzer = "vad"
	cfg.Pauses.VADFrameMS = 30
	if r := checkAnalyzer(cfg); !r.Pass {
		t.Fatalf("vad 30ms at 16k should pass: %+v", r)
	}
	cfg.Pauses.VADFrameMS = 25
	if r := checkAnalyzer(cfg); r.Pass {
		t.Fatalf("vad 25ms should fail")
	}
	cfg.Pauses.Analyzer = "spectral"
	if r := checkAnalyzer(cfg); r.Pass {
		t.Fatalf("unknown analyzer should fail")
	}
}
