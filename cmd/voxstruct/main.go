package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"voxstruct/internal/control"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "voxstruct",
		Short: "Voxstruct: punctuated transcripts from pause-aware speech recognition",
		Long: `Voxstruct splits an audio file into chunks, runs a speech engine (whisper.cpp, vosk-server,
or the coqui stt CLI) on each one, detects pauses, and assembles a punctuated transcript from the
timing gaps. An optional LLM supervisor cleans up the result.

Key commands:
  transcribe <file>         Full pipeline; writes transcript, metadata, timestamps
  pauses <file>             Pause midpoints, silence ranges or speech spans
  engines                   Registered engines and build status
  models list|set           Local whisper.cpp models
  doctor [--all]            Check ffmpeg, engines, supervisor
  config show|path          Effective configuration
  tail-log                  Show last log lines

Env overrides: VOXSTRUCT_ENGINE, VOXSTRUCT_GRANULARITY, VOXSTRUCT_SUPERVISOR,
               VOXSTRUCT_OUTPUT_DIR, VOXSTRUCT_VOSK_URL, VOXSTRUCT_LOG_LEVEL/FORMAT`,
		Example: `  voxstruct transcribe talk.mp3
  voxstruct transcribe talk.wav --engine vosk --granularity word --format detailed
  voxstruct transcribe talk.wav --supervisor openai --speaker Alice
  voxstruct pauses talk.wav --ranges --json
  voxstruct models set ggml-base.bin
  voxstruct doctor --all`,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		SilenceErrors:         true,
	}

	root.Version = version
	root.SetVersionTemplate("Voxstruct v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/voxstruct/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(control.NewTranscribeCmd(cfgPath))
	root.AddCommand(control.NewPausesCmd(cfgPath))
	root.AddCommand(control.NewEnginesCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewConfigCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))

	applyColorHelp(root)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%sVoxstruct%s: pause-aware transcript assembly %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sChunks audio, runs a speech engine, punctuates from pauses, optionally asks an LLM to tidy up.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  voxstruct [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  transcribe <file>           full pipeline, prints the final transcript")
		writeln("  pauses <file>               pause midpoints (--ranges, --speech, --json)")
		writeln("  engines                     registered engines and build status")
		writeln("  models list|set             local whisper.cpp models")
		writeln("  doctor [--all]              check ffmpeg/engines/supervisor")
		writeln("  config show|path            effective configuration")
		writeln("  tail-log                    show last log lines")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  -e, --engine <name>     whisper, vosk, coqui")
		writeln("  -g, --granularity <g>   chunk or word segments")
		writeln("  -f, --format <f>        raw, simple, detailed")
		writeln("  --supervisor <p>        none, openai, command")
		writeln("  -c, --config <path>     config file (default ~/.config/voxstruct/config.toml)")
		writeln("  Env: VOXSTRUCT_ENGINE=vosk, VOXSTRUCT_GRANULARITY=word,")
		writeln("       VOXSTRUCT_LOG_LEVEL=debug, VOXSTRUCT_LOG_FORMAT=json")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln("  voxstruct transcribe talk.mp3")
		writeln("  voxstruct transcribe talk.wav -e vosk -g word -f detailed")
		writeln("  voxstruct transcribe talk.wav --supervisor openai --speaker Alice")
		writeln("  voxstruct pauses talk.wav --ranges --json")
		writeln("  voxstruct models set ggml-base.bin")
		writeln("  voxstruct doctor --all")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
