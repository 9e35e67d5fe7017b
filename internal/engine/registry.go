package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"voxstruct/internal/config"

	"github.com/sirupsen/logrus"
)

// Factory constructs an engine from configuration.
type Factory func(cfg *config.Config, logger logrus.FieldLogger) (Engine, error)

// Registry constructs engines on first use and owns them until Close.
// Create one per run.
type Registry struct {
	cfg       *config.Config
	logger    logrus.FieldLogger
	factories map[string]Factory
	engines   map[string]Engine
}

// NewRegistry returns a registry with the built-in engines registered.
func NewRegistry(cfg *config.Config, logger logrus.FieldLogger) *Registry {
	r := &Registry{
		cfg:       cfg,
		logger:    logger,
		factories: map[string]Factory{},
		engines:   map[string]Engine{},
	}
	r.Register(Whisper, newWhisper)
	r.Register(Vosk, newVosk)
	r.Register(Coqui, newCoqui)
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[strings.ToLower(name)] = f
}

// Names lists registered engine names in order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Get returns the engine for name, constructing it on first use.
func (r *Registry) Get(name string) (Engine, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if e, ok := r.engines[name]; ok {
		return e, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	e, err := f(r.cfg, r.logger.WithField("engine", name))
	if err != nil {
		return nil, err
	}
	r.engines[name] = e
	r.logger.Debugf("engine %s ready", name)
	return e, nil
}

// Close releases every constructed engine.
func (r *Registry) Close() error {
	var errs []error
	for name, e := range r.engines {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(r.engines, name)
	}
	return errors.Join(errs...)
}

// Compiled reports whether the named built-in engine is usable in this
// binary. vosk and coqui talk to external processes and are always present.
func Compiled(name string) bool {
	switch strings.ToLower(name) {
	case Whisper:
		return whisperCompiled
	case Vosk, Coqui:
		return true
	default:
		return false
	}
}
