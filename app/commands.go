package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-midibridge/config"
	"go-midibridge/debug"
	"go-midibridge/midi"
	"go-midibridge/playback"
	"go-midibridge/theme"
	"go-midibridge/tui"
)

func (a *App) runCommand() *cobra.Command {
	var (
		headless   bool
		play       bool
		tempo      int
		outPort    string
		match      string
		palette    string
		pattern    string
		statsEvery time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bridge with the live monitor",
		Long: `Start the bridge. Hardware inputs are opened as they appear, the
computer keyboard plays notes from the monitor, and p toggles the drum
pattern. With --headless the monitor is replaced by periodic stats logs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("play") {
				cfg.Playback.Autostart = play
			}
			if flags.Changed("tempo") {
				cfg.Playback.Tempo = tempo
			}
			if flags.Changed("output") {
				cfg.Output.Port = outPort
			}
			if flags.Changed("match") {
				cfg.Input.Match = match
			}
			if flags.Changed("pattern") {
				cfg.Playback.Pattern = pattern
			}

			lc := cfg.Logging()
			// the monitor owns the terminal
			if !headless && (lc.Output == "" || lc.Output == "stderr" || lc.Output == "stdout") {
				path, err := debug.DefaultLogPath()
				if err != nil {
					return err
				}
				lc.Output = path
			}
			if err := a.setupLogging(lc); err != nil {
				return err
			}

			s, err := newSession(cfg, a.log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := s.start(ctx); err != nil {
				return err
			}

			if headless {
				s.logStats(ctx, statsEvery)
			} else {
				err = a.runMonitor(ctx, s, palette)
			}
			cancel()
			s.wait()
			return err
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "no monitor, log stats instead")
	cmd.Flags().BoolVar(&play, "play", false, "start the drum pattern immediately")
	cmd.Flags().IntVar(&tempo, "tempo", 120, "pattern tempo in BPM (20-300)")
	cmd.Flags().StringVar(&outPort, "output", "", "MIDI output port for thru")
	cmd.Flags().StringVar(&match, "match", "", "only open inputs whose name contains this")
	cmd.Flags().StringVar(&palette, "palette", "", "GIMP palette (.gpl) for the monitor")
	cmd.Flags().StringVar(&pattern, "pattern", "", `saved pattern to play: file name, path or "latest"`)
	cmd.Flags().DurationVar(&statsEvery, "stats-every", 5*time.Second, "stats log interval when headless")
	return cmd
}

func (a *App) runMonitor(ctx context.Context, s *session, palettePath string) error {
	var pal *theme.Palette
	if palettePath != "" {
		p, err := theme.LoadGPL(palettePath)
		if err != nil {
			return err
		}
		pal = p
	}

	m := tui.NewModel(s.router, s.player, s.keyboard, s.devices, s.recent, theme.New(pal), a.log)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func (a *App) portsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List MIDI ports and which inputs the bridge would open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			ins, outs, err := listPorts(3 * time.Second)
			if err != nil {
				return err
			}
			printPorts(cmd.OutOrStdout(), ins, outs, a.cfg.Input, a.cfg.Output.Port)
			return nil
		},
	}
}

// listPorts enumerates with a timeout, CoreMIDI can hang
func listPorts(timeout time.Duration) ([]string, []string, error) {
	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		var ins, outs []string
		for _, p := range r.ins {
			ins = append(ins, p.String())
		}
		for _, p := range r.outs {
			outs = append(outs, p.String())
		}
		return ins, outs, nil
	case <-time.After(timeout):
		return nil, nil, fmt.Errorf("port enumeration timed out after %s", timeout)
	}
}

func printPorts(w io.Writer, ins, outs []string, in config.InputConfig, outPort string) {
	fmt.Fprintln(w, "Inputs:")
	if len(ins) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, name := range ins {
		mark := " "
		if midi.MatchPort(name, in.Match, in.Exclude) {
			mark = "*"
		}
		fmt.Fprintf(w, " %s%d: %s\n", mark, i, name)
	}

	fmt.Fprintln(w, "Outputs:")
	if len(outs) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, name := range outs {
		mark := " "
		if outPort != "" && strings.Contains(name, outPort) {
			mark = ">"
		}
		fmt.Fprintf(w, " %s%d: %s\n", mark, i, name)
	}
	fmt.Fprintln(w, "\n* opened as hardware input   > thru output")
}

func (a *App) patternsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List saved drum patterns, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			saves, err := playback.ListSaves()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(saves) == 0 {
				fmt.Fprintln(out, "no saved patterns (ctrl+s in the monitor saves one)")
				return nil
			}
			for _, sv := range saves {
				name := sv.Name
				if name == "" {
					name = "-"
				}
				fmt.Fprintf(out, "%s  %-16s %s\n", sv.Timestamp.Format("2006-01-02 15:04:05"), name, sv.Filename)
			}
			return nil
		},
	}
}

func (a *App) configCommand() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			data, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.cfg.File != "" {
				fmt.Fprintf(out, "# from %s\n", a.cfg.File)
			}
			fmt.Fprint(out, string(data))

			if save {
				if err := a.cfg.Save(); err != nil {
					return err
				}
				path, _ := config.ConfigPath()
				fmt.Fprintf(cmd.ErrOrStderr(), "saved to %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "also write it to the default config path")
	return cmd
}
