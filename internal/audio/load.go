package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Loader decodes audio files into normalized mono buffers.
type Loader struct {
	FFmpegPath string
	SampleRate int
	logger     logrus.FieldLogger
}

// NewLoader returns a loader targeting sampleRate Hz mono.
func NewLoader(ffmpegPath string, sampleRate int, logger logrus.FieldLogger) *Loader {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Loader{FFmpegPath: ffmpegPath, SampleRate: sampleRate, logger: logger}
}

// Load opens path. PCM WAV files are decoded directly; any other container
// is converted with ffmpeg first.
func (l *Loader) Load(ctx context.Context, path string) (*Buffer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		buf, err := l.loadWAV(path)
		if err == nil {
			l.logger.WithFields(logrus.Fields{
				"file":        path,
				"duration_ms": buf.DurationMS(),
				"source_rate": buf.SourceRate,
				"channels":    buf.SourceChannels,
			}).Info("loaded audio")
			return buf, nil
		}
		l.logger.Debugf("direct wav decode failed, trying ffmpeg: %v", err)
	}
	return l.loadViaFFmpeg(ctx, path)
}

func (l *Loader) loadWAV(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return decodeWAV(f, l.SampleRate)
}

func (l *Loader) loadViaFFmpeg(ctx context.Context, path string) (*Buffer, error) {
	tmp, err := os.CreateTemp("", "voxstruct-src-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	out := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(out) }()

	// ffmpeg -nostdin -y -i input -ac 1 -ar 16000 -sample_fmt s16 -f wav output
	cmd := exec.CommandContext(ctx, l.FFmpegPath,
		"-nostdin", "-y", "-i", path,
		"-ac", "1", "-ar", fmt.Sprint(l.SampleRate),
		"-sample_fmt", "s16",
		"-f", "wav",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	l.logger.Debugf("converting %s with %s", path, l.FFmpegPath)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	buf, err := l.loadWAV(out)
	if err != nil {
		return nil, fmt.Errorf("decode converted audio: %w", err)
	}
	l.logger.WithFields(logrus.Fields{
		"file":        path,
		"duration_ms": buf.DurationMS(),
	}).Info("loaded audio via ffmpeg")
	return buf, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
