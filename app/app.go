// Package app is the midibridge command line: it loads configuration,
// builds the bridge and runs the monitor or the headless loop.
package app

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"go-midibridge/config"
	"go-midibridge/debug"
)

// App holds what every command needs after flags are parsed
type App struct {
	version    string
	configFile string
	logLevel   string
	debugLog   bool

	cfg    *config.Config
	log    zerolog.Logger
	closer io.Closer
}

func New(version string) *App {
	return &App{version: version, log: zerolog.Nop()}
}

// Execute runs the command line with args
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Close releases the log file, if one was opened
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "midibridge",
		Short:   "Route MIDI from every source onto the audio sample clock",
		Version: a.version,
		Long: `midibridge merges hardware MIDI inputs, the computer keyboard and an
automated drum pattern into one priority-ordered event stream, and places
every event on the audio engine's sample clock.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default is ~/.config/go-midibridge/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.debugLog, "debug", false, "per-event router logging (debug_logging)")

	root.AddCommand(a.runCommand())
	root.AddCommand(a.portsCommand())
	root.AddCommand(a.patternsCommand())
	root.AddCommand(a.configCommand())
	return root
}

// load reads the config and applies the persistent flags on top
func (a *App) load() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.debugLog {
		cfg.DebugLogging = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// setupLogging opens the logger described by lc
func (a *App) setupLogging(lc debug.Config) error {
	log, closer, err := debug.New(lc)
	if err != nil {
		return err
	}
	a.log = log
	a.closer = closer
	return nil
}
