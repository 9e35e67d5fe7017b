package control

import (
	"encoding/json"
	"fmt"
	"io"

	"voxstruct/internal/audio"
	"voxstruct/internal/config"
	"voxstruct/internal/logging"
	"voxstruct/internal/pause"
	"voxstruct/internal/pipeline"

	"github.com/spf13/cobra"
)

// NewPausesCmd prints the pauses found in an audio file.
func NewPausesCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pauses <audiofile>",
		Short: "Detect pauses (or speech spans) in an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("analyzer"); v != "" {
				cfg.Pauses.Analyzer = v
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			buf, err := audio.NewLoader(cfg.Audio.FFmpegPath, cfg.Audio.SampleRate, logger).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			analyzer, err := pipeline.Analyzer(cfg)
			if err != nil {
				return err
			}
			det := pause.NewDetector(analyzer, cfg.Pauses.SilenceThreshDB, cfg.Pauses.MinSilenceMS, logger)
			mode := "midpoints"
			if v, _ := cmd.Flags().GetBool("ranges"); v {
				mode = "ranges"
			}
			if v, _ := cmd.Flags().GetBool("speech"); v {
				mode = "speech"
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			return printPauses(cmd.OutOrStdout(), det, buf, mode, jsonOut)
		},
	}
	cmd.Flags().Bool("ranges", false, "print silence ranges instead of midpoints")
	cmd.Flags().Bool("speech", false, "print speech spans between pauses")
	cmd.Flags().Bool("json", false, "output JSON")
	cmd.Flags().String("analyzer", "", "override pauses.analyzer: energy, vad")
	return cmd
}

func printPauses(out io.Writer, det *pause.Detector, buf *audio.Buffer, mode string, jsonOut bool) error {
	var (
		points    []float64
		intervals []pause.Interval
		err       error
	)
	switch mode {
	case "ranges":
		intervals, err = det.PauseRanges(buf)
	case "speech":
		intervals, err = det.SpeechSegments(buf)
	default:
		points, err = det.DetectPauses(buf)
	}
	if err != nil {
		return err
	}
	if jsonOut {
		enc := json.NewEncoder(out)
		if intervals != nil {
			return enc.Encode(intervals)
		}
		return enc.Encode(points)
	}
	for _, iv := range intervals {
		_, _ = fmt.Fprintf(out, "%8.2f %8.2f\n", iv.Start, iv.End)
	}
	for _, p := range points {
		_, _ = fmt.Fprintf(out, "%8.2f\n", p)
	}
	return nil
}
