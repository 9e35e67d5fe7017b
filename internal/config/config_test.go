package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnvOverrides(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}

	t.Setenv("VOXSTRUCT_ENGINE", "VOSK")
	t.Setenv("VOXSTRUCT_GRANULARITY", "word")
	t.Setenv("VOXSTRUCT_LOG_LEVEL", "debug")
	t.Setenv("VOXSTRUCT_LOG_FORMAT", "json")
	t.Setenv("VOXSTRUCT_VOSK_URL", "ws://10.0.0.1:2700")

	applyEnvOverrides(cfg)

	if cfg.Engine.Name != "vosk" || cfg.Engine.Granularity != "word" {
		t.Fatalf("engine overrides failed: %+v", cfg.Engine)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides failed: %+v", cfg.Logging)
	}
	if cfg.Vosk.URL != "ws://10.0.0.1:2700" {
		t.Fatalf("vosk url override failed: %q", cfg.Vosk.URL)
	}
}

func TestDefaultsMatchPipelineHeuristics(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if cfg.Audio.ChunkMS != 30000 {
		t.Fatalf("chunk_ms = %d", cfg.Audio.ChunkMS)
	}
	if cfg.Pauses.SilenceThreshDB != -40 || cfg.Pauses.MinSilenceMS != 500 {
		t.Fatalf("pause defaults: %+v", cfg.Pauses)
	}
	p := cfg.Punctuation
	if p.ParagraphGapMS != 1000 || p.SentenceGapMS != 400 || p.WordSentenceGapMS != 800 || p.WordCommaGapMS != 300 || p.PauseToleranceMS != 150 {
		t.Fatalf("punctuation defaults: %+v", p)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.toml"

	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Coqui.Command = "/opt/stt/bin/stt"
	cfg.Punctuation.SentenceGapMS = 450

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Coqui.Command != "/opt/stt/bin/stt" {
		t.Fatalf("expected coqui command to persist")
	}
	if loaded.Punctuation.SentenceGapMS != 450 {
		t.Fatalf("expected sentence gap to persist, got %d", loaded.Punctuation.SentenceGapMS)
	}
	if loaded.Paths.ConfigPath != path {
		t.Fatalf("config path = %q", loaded.Paths.ConfigPath)
	}
}

func TestLoadWritesTemplateWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Name != "whisper" {
		t.Fatalf("engine default = %q", cfg.Engine.Name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if !strings.Contains(string(data), "[punctuation]") {
		t.Fatalf("template missing punctuation section:\n%s", data)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[engine\nname = "), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
