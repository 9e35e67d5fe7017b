// Package engine wraps the speech recognizers behind one interface. Each
// adapter holds its model or connection for the life of a run, exports a
// chunk to a temporary WAV file, and returns the engine's own result shape.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"voxstruct/internal/audio"
)

// Engine names.
const (
	Whisper = "whisper"
	Vosk    = "vosk"
	Coqui   = "coqui"
)

// ErrModelLoad is returned when an adapter cannot initialize its model or
// required dependency.
var ErrModelLoad = errors.New("model load failed")

// NativeResult is an engine's raw output for one chunk. Err is set when the
// recognition call failed; Payload then carries an empty error record.
type NativeResult struct {
	Engine  string
	Payload json.RawMessage
	Err     error
}

// Engine transcribes one chunk at a time.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, c audio.Chunk) NativeResult
	Close() error
}

type failurePayload struct {
	Error      string `json:"error"`
	Confidence int    `json:"confidence"`
	Segments   []any  `json:"segments"`
}

// Failed builds the result an adapter returns when recognition fails.
func Failed(name string, err error) NativeResult {
	payload, _ := json.Marshal(failurePayload{Error: err.Error(), Segments: []any{}})
	return NativeResult{Engine: name, Payload: payload, Err: err}
}

// Transcribe runs e on c and converts a panic inside the vendor call into a
// failed result.
func Transcribe(ctx context.Context, e Engine, c audio.Chunk) (res NativeResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(e.Name(), fmt.Errorf("%s panicked on %s: %v", e.Name(), c, r))
		}
	}()
	return e.Transcribe(ctx, c)
}
