package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"voxstruct/internal/audio"
	"voxstruct/internal/config"
	"voxstruct/internal/engine"
	"voxstruct/internal/logging"
	"voxstruct/internal/output"
	"voxstruct/internal/pipeline"
	"voxstruct/internal/supervisor"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type transcribeOptions struct {
	File    string
	Speaker string
	Write   bool
}

// NewTranscribeCmd runs the full pipeline over one audio file.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <audiofile>",
		Short: "Transcribe an audio file into a punctuated transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			applyTranscribeFlags(cmd, cfg)
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			reg := engine.NewRegistry(cfg, logger)
			defer func() {
				if err := reg.Close(); err != nil {
					logger.Warnf("close engines: %v", err)
				}
			}()
			speaker, _ := cmd.Flags().GetString("speaker")
			noWrite, _ := cmd.Flags().GetBool("no-write")
			_, err = transcribe(cmd.Context(), cmd.OutOrStdout(), cfg, reg, logger, transcribeOptions{
				File:    args[0],
				Speaker: speaker,
				Write:   !noWrite,
			})
			return err
		},
	}
	cmd.Flags().StringP("engine", "e", "", "engine: whisper, vosk, coqui")
	cmd.Flags().StringP("granularity", "g", "", "segment granularity: chunk, word")
	cmd.Flags().StringP("format", "f", "", "transcript format: raw, simple, detailed")
	cmd.Flags().StringP("output-dir", "o", "", "directory for transcript files")
	cmd.Flags().String("supervisor", "", "LLM supervisor: none, openai, command")
	cmd.Flags().String("language", "", "language hint passed to the engine")
	cmd.Flags().String("speaker", "", "speaker label attached to every segment")
	cmd.Flags().Bool("no-write", false, "print the transcript without writing files")
	return cmd
}

func applyTranscribeFlags(cmd *cobra.Command, cfg *config.Config) {
	set := func(flag string, dst *string) {
		if v, _ := cmd.Flags().GetString(flag); strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("engine", &cfg.Engine.Name)
	set("granularity", &cfg.Engine.Granularity)
	set("format", &cfg.Output.Format)
	set("output-dir", &cfg.Output.Dir)
	set("supervisor", &cfg.Supervisor.Provider)
	set("language", &cfg.Engine.Language)
}

func transcribe(ctx context.Context, out io.Writer, cfg *config.Config, reg *engine.Registry, logger *logrus.Logger, opts transcribeOptions) (*pipeline.Result, error) {
	buf, err := audio.NewLoader(cfg.Audio.FFmpegPath, cfg.Audio.SampleRate, logger).Load(ctx, opts.File)
	if err != nil {
		return nil, err
	}
	eng, err := reg.Get(cfg.Engine.Name)
	if err != nil {
		return nil, err
	}
	sup, supErr := supervisor.New(cfg, logger)
	if supErr != nil {
		if !errors.Is(supErr, supervisor.ErrUnavailable) {
			return nil, supErr
		}
		logger.Warnf("proceeding without LLM supervision: %v", supErr)
		sup = nil
	}
	p, err := pipeline.New(cfg, eng, sup, logger)
	if err != nil {
		return nil, err
	}
	p.Speaker = opts.Speaker

	res, err := p.Run(ctx, buf)
	if err != nil {
		return nil, err
	}
	if supErr != nil && res.SupervisorErr == nil {
		res.SupervisorErr = supErr
	}
	if opts.Write {
		paths, err := output.Write(cfg.Output.Dir, opts.File, res)
		if err != nil {
			return nil, fmt.Errorf("write output: %w", err)
		}
		logger.WithFields(logrus.Fields{"transcript": paths.Final, "metadata": paths.Metadata}).Info("output written")
	}
	_, _ = fmt.Fprintln(out, res.Final)
	return res, nil
}
