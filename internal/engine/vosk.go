package engine

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"voxstruct/internal/audio"
	"voxstruct/internal/config"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	voskDialTimeout = 5 * time.Second
	voskFrameMS     = 200
)

// voskEngine streams chunks to a vosk-server over its websocket protocol.
// The server holds the model; construction only checks it is reachable.
type voskEngine struct {
	url    string
	words  bool
	dialer *websocket.Dialer
	logger logrus.FieldLogger
}

type voskConfigMsg struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
		Words      int `json:"words"`
	} `json:"config"`
}

// voskReply is either a partial hypothesis or a final utterance result.
type voskReply struct {
	Partial *string    `json:"partial"`
	Text    *string    `json:"text"`
	Result  []VoskWord `json:"result"`
}

func newVosk(cfg *config.Config, logger logrus.FieldLogger) (Engine, error) {
	url := strings.TrimSpace(cfg.Vosk.URL)
	if url == "" {
		return nil, fmt.Errorf("%w: vosk.url is empty", ErrModelLoad)
	}
	ctx, cancel := context.WithTimeout(context.Background(), voskDialTimeout)
	defer cancel()
	if err := ProbeVosk(ctx, url); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	logger.Infof("vosk server reachable: %s", url)
	return &voskEngine{
		url:    url,
		words:  cfg.Vosk.Words,
		dialer: &websocket.Dialer{HandshakeTimeout: voskDialTimeout},
		logger: logger,
	}, nil
}

// ProbeVosk opens and cleanly closes one websocket session with url.
func ProbeVosk(ctx context.Context, url string) error {
	d := &websocket.Dialer{HandshakeTimeout: voskDialTimeout}
	conn, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("vosk server %s: %w", url, err)
	}
	defer conn.Close()
	return conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (v *voskEngine) Name() string { return Vosk }

func (v *voskEngine) Transcribe(ctx context.Context, c audio.Chunk) NativeResult {
	var res VoskResult
	err := audio.WithTempWAV(c, func(path string) error {
		buf, err := audio.ReadWAVFile(path)
		if err != nil {
			return err
		}
		res, err = v.stream(ctx, buf)
		return err
	})
	if err != nil {
		return Failed(Vosk, fmt.Errorf("vosk %s: %w", c, err))
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return Failed(Vosk, err)
	}
	return NativeResult{Engine: Vosk, Payload: payload}
}

// stream sends the samples in frames and collects every final result. The
// server answers each audio frame and the eof marker with one message.
func (v *voskEngine) stream(ctx context.Context, buf *audio.Buffer) (VoskResult, error) {
	conn, _, err := v.dialer.DialContext(ctx, v.url, nil)
	if err != nil {
		return VoskResult{}, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	var cfgMsg voskConfigMsg
	cfgMsg.Config.SampleRate = buf.SampleRate
	if v.words {
		cfgMsg.Config.Words = 1
	}
	if err := conn.WriteJSON(cfgMsg); err != nil {
		return VoskResult{}, fmt.Errorf("send config: %w", err)
	}

	var (
		texts  []string
		result = VoskResult{}
	)
	collect := func() error {
		var reply voskReply
		if err := conn.ReadJSON(&reply); err != nil {
			return fmt.Errorf("read reply: %w", err)
		}
		if reply.Text == nil {
			return nil
		}
		if t := strings.TrimSpace(*reply.Text); t != "" {
			texts = append(texts, t)
		}
		result.Result = append(result.Result, reply.Result...)
		return nil
	}

	frame := buf.SampleRate * voskFrameMS / 1000
	pcm := make([]byte, frame*2)
	for off := 0; off < len(buf.Samples); off += frame {
		end := min(off+frame, len(buf.Samples))
		n := 0
		for _, s := range buf.Samples[off:end] {
			binary.LittleEndian.PutUint16(pcm[n:], uint16(s))
			n += 2
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[:n]); err != nil {
			return VoskResult{}, fmt.Errorf("send audio: %w", err)
		}
		if err := collect(); err != nil {
			return VoskResult{}, err
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return VoskResult{}, fmt.Errorf("send eof: %w", err)
	}
	if err := collect(); err != nil {
		return VoskResult{}, err
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	result.Text = strings.Join(texts, " ")
	return result, nil
}

func (v *voskEngine) Close() error { return nil }
