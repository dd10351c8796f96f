package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/cmd"
	"github.com/vsariola/drawbar/core"
	"github.com/vsariola/drawbar/oto"
	"github.com/vsariola/drawbar/rpc"
	"github.com/vsariola/drawbar/version"
)

type options struct {
	config      string
	program     string
	noDefaults  bool
	dumpCC      bool
	exportNames string
	midiInput   string
	render      float64
	output      string
	remote      string
	sampleRate  int
	verbose     bool
}

func newRootCmd() *cobra.Command {
	var o options
	c := &cobra.Command{
		Use:   "drawbar [flags] [key=value ...]",
		Short: "Drawbar - a tonewheel organ",
		Long: `Drawbar plays a tonewheel organ from MIDI input. The upper and lower
manuals and the pedals listen to their own MIDI channels; drawbars, effects
and the rotary speaker are controlled by MIDI controllers.

Assignments given as arguments override the configuration file, e.g.
  drawbar -c organ.conf upper.drawbar8=0 reverb.mix=0.1

While playing, lines typed on standard input are applied to the running
organ; type "help" for the commands.`,
		Version:       version.VersionOrHash,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(c *cobra.Command, args []string) error {
			if err := run(c.Context(), o, args); err != nil {
				return cmd.PrintError(c.ErrOrStderr(), err)
			}
			return nil
		},
	}
	f := c.Flags()
	f.StringVarP(&o.config, "config", "c", "", "configuration file applied at startup")
	f.StringVarP(&o.program, "program", "p", "", "program table file")
	f.BoolVarP(&o.noDefaults, "no-defaults", "D", false, "leave out the factory controller assignment")
	f.BoolVarP(&o.dumpCC, "dump-cc", "d", false, "print the controller assignment and exit")
	f.StringVarP(&o.exportNames, "export-names", "x", "", "write the controller names as YAML to `file` and exit")
	f.StringVar(&o.midiInput, "midi-input", "", "open the first MIDI input whose name starts with `prefix` (default: the first input)")
	f.Float64Var(&o.render, "render", 0, "render `seconds` of a test chord to a .wav file instead of playing")
	f.StringVarP(&o.output, "output", "o", "", "output `file` of --render")
	f.StringVar(&o.remote, "remote", "", "serve remote control on `address`, e.g. :"+rpc.DefaultPort)
	f.IntVar(&o.sampleRate, "sample-rate", 44100, "sample rate in Hz")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log debug messages")
	return c
}

func run(ctx context.Context, o options, args []string) error {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	base, err := baseConfig(o, args)
	if err != nil {
		return err
	}
	if o.dumpCC || o.exportNames != "" {
		return dump(o, base, logger)
	}
	if o.render > 0 && o.output == "" {
		return fmt.Errorf("--render needs an output file, given with -o")
	}
	sampleRate := o.sampleRate
	var audio *oto.OtoContext
	if o.render <= 0 {
		if audio, err = oto.NewContext(sampleRate); err != nil {
			return err
		}
		defer audio.Close()
	}
	session, processor, err := core.NewSession(cmd.Factory, core.Options{
		SampleRate: sampleRate,
		Base:       base,
		NoDefaults: o.noDefaults,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()
	if o.render > 0 {
		return render(processor, sampleRate, o.render, o.output)
	}
	return play(ctx, o, session, processor, audio, logger)
}

// baseConfig collects the startup configuration: the configuration file, the
// program table and the assignments on the command line, in that order.
func baseConfig(o options, args []string) ([]drawbar.ConfigLine, error) {
	var lines []drawbar.ConfigLine
	if o.config != "" {
		l, diags, err := drawbar.LoadConfigFile(o.config)
		if err != nil {
			return nil, err
		}
		for _, d := range diags {
			cmd.PrintAlert(os.Stderr, core.Alert{Name: core.AlertConfig, Message: d.Error(), Priority: core.Warning})
		}
		lines = append(lines, l...)
	}
	if o.program != "" {
		abs, err := filepath.Abs(o.program)
		if err != nil {
			return nil, fmt.Errorf("could not resolve program file %v: %w", o.program, err)
		}
		lines = append(lines, drawbar.ConfigLine{Key: drawbar.ProgramKey, Value: abs, File: "command line"})
	}
	for i, arg := range args {
		l, ok, err := drawbar.ParseConfigLine(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		if ok {
			l.File, l.Line = "command line", i+1
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func dump(o options, base []drawbar.ConfigLine, logger *slog.Logger) error {
	inst, diags, err := core.NewInstance(cmd.Factory, core.InstanceConfig{SampleRate: o.sampleRate, NoDefaults: o.noDefaults}, base)
	if err != nil {
		return err
	}
	defer inst.Close()
	for _, d := range diags {
		logger.Warn("configuration error", "err", d)
	}
	if o.dumpCC {
		if err := inst.Registry.Dump(os.Stdout); err != nil {
			return err
		}
	}
	if o.exportNames != "" {
		f, err := os.Create(o.exportNames)
		if err != nil {
			return fmt.Errorf("could not create %v: %w", o.exportNames, err)
		}
		defer f.Close()
		if err := inst.Registry.WriteNames(f); err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("could not write %v: %w", o.exportNames, err)
		}
	}
	return nil
}

func play(ctx context.Context, o options, session *core.Session, processor *core.Processor, audio *oto.OtoContext, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	midi := cmd.NewMIDIInput(audio.SampleRate(), logger)
	defer midi.Close()
	if err := midi.TryToOpenBy(o.midiInput, o.midiInput == ""); err != nil {
		cmd.PrintAlert(os.Stderr, core.Alert{Message: err.Error(), Priority: core.Warning})
	}
	if o.remote != "" {
		server, err := rpc.Serve(session.Broker(), o.remote, logger)
		if err != nil {
			return err
		}
		defer server.Close()
	}
	player := audio.Play(func(buf drawbar.AudioBuffer) {
		processor.Process(drawbar.AudioBuffer{}, buf, midi)
	})
	defer player.Close()
	fmt.Fprintf(os.Stderr, "playing at %d Hz, press Ctrl-C to quit\n", audio.SampleRate())
	lines := readConsole(ctx, os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		case a := <-session.Alerts():
			cmd.PrintAlert(os.Stderr, a)
		case line, ok := <-lines:
			if !ok {
				lines = nil // stdin closed, keep playing
				continue
			}
			if err := console(session, line, os.Stdout); err != nil {
				cmd.PrintAlert(os.Stderr, core.Alert{Message: err.Error(), Priority: core.Error})
			}
		}
	}
}
