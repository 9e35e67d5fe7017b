//go:build !whisper

package engine

import (
	"fmt"

	"voxstruct/internal/config"

	"github.com/sirupsen/logrus"
)

const whisperCompiled = false

func newWhisper(_ *config.Config, _ logrus.FieldLogger) (Engine, error) {
	return nil, fmt.Errorf("%w: whisper support not compiled in (build with -tags whisper)", ErrModelLoad)
}
