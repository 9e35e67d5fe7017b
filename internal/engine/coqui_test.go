package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"voxstruct/internal/config"
	"voxstruct/internal/logging"
)

// fakeSTT writes a script that records the --audio path it was given and
// prints a Coqui-style JSON document.
func fakeSTT(t *testing.T, exitCode int) (script, record string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	dir := t.TempDir()
	record = filepath.Join(dir, "audio-path")
	script = filepath.Join(dir, "stt")
	body := `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --audio) shift; [ -f "$1" ] || exit 3; echo "$1" > "` + record + `" ;;
  esac
  shift
done
if [ ` + strconv.Itoa(exitCode) + ` -ne 0 ]; then echo "model corrupt" >&2; exit ` + strconv.Itoa(exitCode) + `; fi
echo "STT 1.4.0"
echo '{"transcripts":[{"confidence":-12.5,"words":[{"word":"hello","start_time":0.1,"duration":0.3}]}]}'
`
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return script, record
}

func coquiConfig(t *testing.T, command string) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	model := filepath.Join(t.TempDir(), "model.tflite")
	if err := os.WriteFile(model, []byte("x"), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}
	cfg.Coqui.Command = command
	cfg.Coqui.Model = model
	cfg.Coqui.Args = `--beam_width "500"`
	return cfg
}

func TestCoquiRunsCLIAndRemovesTempFile(t *testing.T) {
	script, record := fakeSTT(t, 0)
	eng, err := newCoqui(coquiConfig(t, script), logging.NewTestLogger())
	if err != nil {
		t.Fatalf("new coqui: %v", err)
	}

	res := eng.Transcribe(context.Background(), testChunk(500))
	if res.Err != nil {
		t.Fatalf("transcribe: %v", res.Err)
	}
	if !json.Valid(res.Payload) || !strings.HasPrefix(string(res.Payload), `{"transcripts"`) {
		t.Fatalf("payload = %s", res.Payload)
	}

	data, err := os.ReadFile(record)
	if err != nil {
		t.Fatalf("script never saw --audio: %v", err)
	}
	tmp := strings.TrimSpace(string(data))
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("temp wav %s still exists", tmp)
	}
}

func TestCoquiFailureCarriesStderr(t *testing.T) {
	script, _ := fakeSTT(t, 2)
	eng, err := newCoqui(coquiConfig(t, script), logging.NewTestLogger())
	if err != nil {
		t.Fatalf("new coqui: %v", err)
	}
	res := eng.Transcribe(context.Background(), testChunk(200))
	if res.Err == nil || !strings.Contains(res.Err.Error(), "model corrupt") {
		t.Fatalf("expected stderr in error, got %v", res.Err)
	}
}

func TestCoquiMissingModel(t *testing.T) {
	script, _ := fakeSTT(t, 0)
	cfg := coquiConfig(t, script)
	cfg.Coqui.Model = filepath.Join(t.TempDir(), "missing.tflite")
	if _, err := newCoqui(cfg, logging.NewTestLogger()); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
}

func TestCoquiMissingBinary(t *testing.T) {
	cfg := coquiConfig(t, "voxstruct-no-such-stt")
	if _, err := newCoqui(cfg, logging.NewTestLogger()); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
}
