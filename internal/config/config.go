package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultChunkMS        = 30000
	defaultSilenceDB      = -40.0
	defaultMinSilenceMS   = 500
	defaultSampleRate     = 16000
	defaultStateDirLinux  = ".local/state/voxstruct"
	defaultConfigDir      = ".config/voxstruct"
	defaultSupervisorTime = 120
)

// Config holds user configuration loaded from TOML.
type Config struct {
	Audio struct {
		SampleRate int    `toml:"sample_rate"`
		Channels   int    `toml:"channels"`
		ChunkMS    int    `toml:"chunk_ms"`
		FFmpegPath string `toml:"ffmpeg_path"`
	} `toml:"audio"`

	Pauses struct {
		Analyzer          string  `toml:"analyzer"` // energy, vad
		SilenceThreshDB   float64 `toml:"silence_threshold_db"`
		MinSilenceMS      int     `toml:"min_silence_ms"`
		VADAggressiveness int     `toml:"vad_aggressiveness"`
		VADFrameMS        int     `toml:"vad_frame_ms"`
	} `toml:"pauses"`

	Engine struct {
		Name        string `toml:"name"`        // whisper, vosk, coqui
		Granularity string `toml:"granularity"` // chunk, word
		Language    string `toml:"language"`
	} `toml:"engine"`

	Whisper struct {
		ModelPath string `toml:"model_path"`
		Threads   int    `toml:"threads"`
	} `toml:"whisper"`

	Vosk struct {
		URL   string `toml:"url"`
		Words bool   `toml:"words"`
	} `toml:"vosk"`

	Coqui struct {
		Command string `toml:"command"`
		Model   string `toml:"model"`
		Scorer  string `toml:"scorer"`
		Args    string `toml:"args"` // shell-style, split with shlex
	} `toml:"coqui"`

	Punctuation struct {
		ParagraphGapMS    int64 `toml:"paragraph_gap_ms"`
		SentenceGapMS     int64 `toml:"sentence_gap_ms"`
		WordSentenceGapMS int64 `toml:"word_sentence_gap_ms"`
		WordCommaGapMS    int64 `toml:"word_comma_gap_ms"`
		PauseToleranceMS  int64 `toml:"pause_tolerance_ms"`
	} `toml:"punctuation"`

	Supervisor struct {
		Provider    string  `toml:"provider"` // none, openai, command
		Model       string  `toml:"model"`
		BaseURL     string  `toml:"base_url"`
		APIKeyEnv   string  `toml:"api_key_env"`
		TimeoutSec  float64 `toml:"timeout_sec"`
		Temperature float64 `toml:"temperature"`
		MaxTokens   int     `toml:"max_tokens"`
		Command     string  `toml:"command"`
		Args        string  `toml:"args"`
		Verify      bool    `toml:"verify"`
		RedactPII   bool    `toml:"redact_pii"`
	} `toml:"supervisor"`

	Output struct {
		Dir    string `toml:"dir"`
		Format string `toml:"format"` // raw, simple, detailed
	} `toml:"output"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`
	} `toml:"logging"`

	Paths struct {
		StateDir   string `toml:"state_dir"`
		LogPath    string `toml:"log_path"`
		ConfigPath string `toml:"-"`
	} `toml:"paths"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "voxstruct")
	}

	cfg := &Config{}

	cfg.Audio.SampleRate = defaultSampleRate
	cfg.Audio.Channels = 1
	cfg.Audio.ChunkMS = defaultChunkMS
	cfg.Audio.FFmpegPath = "ffmpeg"

	cfg.Pauses.Analyzer = "energy"
	cfg.Pauses.SilenceThreshDB = defaultSilenceDB
	cfg.Pauses.MinSilenceMS = defaultMinSilenceMS
	cfg.Pauses.VADAggressiveness = 2
	cfg.Pauses.VADFrameMS = 30

	cfg.Engine.Name = "whisper"
	cfg.Engine.Granularity = "chunk"
	cfg.Engine.Language = ""

	cfg.Whisper.ModelPath = filepath.Join(stateDir, "models", "ggml-base.bin")
	cfg.Whisper.Threads = runtime.NumCPU()

	cfg.Vosk.URL = "ws://127.0.0.1:2700"
	cfg.Vosk.Words = true

	cfg.Coqui.Command = "stt"
	cfg.Coqui.Model = filepath.Join(stateDir, "models", "model.tflite")

	cfg.Punctuation.ParagraphGapMS = 1000
	cfg.Punctuation.SentenceGapMS = 400
	cfg.Punctuation.WordSentenceGapMS = 800
	cfg.Punctuation.WordCommaGapMS = 300
	cfg.Punctuation.PauseToleranceMS = 150

	cfg.Supervisor.Provider = "none"
	cfg.Supervisor.Model = "gpt-4o-mini"
	cfg.Supervisor.BaseURL = "https://api.openai.com/v1"
	cfg.Supervisor.APIKeyEnv = "OPENAI_API_KEY"
	cfg.Supervisor.TimeoutSec = defaultSupervisorTime
	cfg.Supervisor.Temperature = 0.3
	cfg.Supervisor.MaxTokens = 16000
	cfg.Supervisor.Verify = true

	cfg.Output.Dir = "output"
	cfg.Output.Format = "simple"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Logging.Stdout = true

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "voxstruct.log")

	return cfg, nil
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Encode renders cfg as TOML.
func Encode(cfg *Config) (string, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath)} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOXSTRUCT_ENGINE"); v != "" {
		cfg.Engine.Name = strings.ToLower(v)
	}
	if v := os.Getenv("VOXSTRUCT_GRANULARITY"); v != "" {
		cfg.Engine.Granularity = strings.ToLower(v)
	}
	if v := os.Getenv("VOXSTRUCT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VOXSTRUCT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("VOXSTRUCT_SUPERVISOR"); v != "" {
		cfg.Supervisor.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("VOXSTRUCT_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("VOXSTRUCT_VOSK_URL"); v != "" {
		cfg.Vosk.URL = v
	}
}
