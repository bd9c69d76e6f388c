// Package debug builds the zerolog loggers every component writes its
// diagnostics to.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config selects level, format and destination
type Config struct {
	Level   string // trace, debug, info, warn, error, disabled
	Format  string // auto, console, json
	Output  string // stderr, stdout, discard, or a file path
	NoColor bool
}

// DefaultConfig logs info and above to stderr
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "auto",
		Output:  "stderr",
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// DefaultLogPath is ~/.config/go-midibridge/debug.log, used when the
// terminal belongs to the monitor
func DefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-midibridge", "debug.log"), nil
}

// New creates a logger from cfg. The returned closer releases the log file,
// if one was opened.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	out, closer, err := openOutput(cfg.Output)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var w io.Writer = out
	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "console"
		}
	}
	switch format {
	case "console", "pretty":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000", NoColor: cfg.NoColor}
	case "json":
	default:
		closer.Close()
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger, closer, nil
}

// ParseLevel accepts zerolog level names plus "off"/"none"
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zerolog.InfoLevel, nil
	case "off", "none":
		return zerolog.Disabled, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

func openOutput(dest string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(dest) {
	case "", "stderr":
		return os.Stderr, nopCloser{}, nil
	case "stdout":
		return os.Stdout, nopCloser{}, nil
	case "discard", "none":
		return io.Discard, nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Category tags every record with cat=<category>
func Category(log zerolog.Logger, category string) zerolog.Logger {
	return log.With().Str("cat", category).Logger()
}

// Every returns a logger that only writes every nth record
// (use for high-frequency events)
func Every(log zerolog.Logger, n uint32) zerolog.Logger {
	if n <= 1 {
		return log
	}
	return log.Sample(&zerolog.BasicSampler{N: n})
}

// Timed logs how long a section took when the returned func is called
func Timed(log zerolog.Logger, msg string) func() {
	start := time.Now()
	return func() {
		log.Debug().Dur("elapsed", time.Since(start)).Msg(msg)
	}
}
