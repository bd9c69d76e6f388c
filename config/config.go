package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"go-midibridge/debug"
	"go-midibridge/velocity"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is prepended to every environment override, e.g.
// MIDIBRIDGE_SAMPLE_RATE or MIDIBRIDGE_VELOCITY_PROFILE
const EnvPrefix = "MIDIBRIDGE"

type VelocityConfig struct {
	Profile     string  `mapstructure:"profile" yaml:"profile"`
	Sensitivity float64 `mapstructure:"sensitivity" yaml:"sensitivity"`
}

type InputConfig struct {
	Match        string        `mapstructure:"match" yaml:"match"` // substring of port names; empty opens all
	Exclude      []string      `mapstructure:"exclude" yaml:"exclude"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

type OutputConfig struct {
	Port string `mapstructure:"port" yaml:"port"` // MIDI thru destination
}

type AudioConfig struct {
	Enabled      bool `mapstructure:"enabled" yaml:"enabled"`
	BufferFrames int  `mapstructure:"buffer_frames" yaml:"buffer_frames"` // ticker clock only
}

type PlaybackConfig struct {
	Tempo     int    `mapstructure:"tempo" yaml:"tempo"`
	Kit       string `mapstructure:"kit" yaml:"kit"`
	Pattern   string `mapstructure:"pattern" yaml:"pattern"` // saved pattern, path or "latest"; empty plays the default beat
	Autostart bool   `mapstructure:"autostart" yaml:"autostart"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// KeyboardConfig drives the computer keyboard producer in the monitor
type KeyboardConfig struct {
	Octave   int           `mapstructure:"octave" yaml:"octave"`
	Pressure float64       `mapstructure:"pressure" yaml:"pressure"` // raw velocity input, 0-1
	Gate     time.Duration `mapstructure:"gate" yaml:"gate"`
}

// Config is the main configuration structure
type Config struct {
	MaxQueueSize         int  `mapstructure:"max_queue_size" yaml:"max_queue_size"`
	SampleRate           int  `mapstructure:"sample_rate" yaml:"sample_rate"`
	ProcessingIntervalMS int  `mapstructure:"processing_interval_ms" yaml:"processing_interval_ms"`
	DebugLogging         bool `mapstructure:"debug_logging" yaml:"debug_logging"`
	BatchBuffer          int  `mapstructure:"batch_buffer" yaml:"batch_buffer"`

	Velocity VelocityConfig `mapstructure:"velocity" yaml:"velocity"`
	Input    InputConfig    `mapstructure:"input" yaml:"input"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Audio    AudioConfig    `mapstructure:"audio" yaml:"audio"`
	Playback PlaybackConfig `mapstructure:"playback" yaml:"playback"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Keyboard KeyboardConfig `mapstructure:"keyboard" yaml:"keyboard"`

	// File is the config file that was read, if any
	File string `mapstructure:"-" yaml:"-"`
}

var defaults = map[string]any{
	"max_queue_size":         1000,
	"sample_rate":            44100,
	"processing_interval_ms": 10,
	"debug_logging":          false,
	"batch_buffer":           64,
	"velocity.profile":       "linear",
	"velocity.sensitivity":   1.0,
	"input.match":            "",
	"input.exclude":          []string{"Midi Through", "Through Port"},
	"input.poll_interval":    time.Second,
	"output.port":            "",
	"audio.enabled":          true,
	"audio.buffer_frames":    512,
	"playback.tempo":         120,
	"playback.kit":           "gm",
	"playback.pattern":       "",
	"playback.autostart":     false,
	"log.level":              "info",
	"log.format":             "auto",
	"log.output":             "stderr",
	"keyboard.octave":        4,
	"keyboard.pressure":      0.75,
	"keyboard.gate":          250 * time.Millisecond,
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err) // defaults always decode
	}
	return cfg
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-midibridge"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load merges, lowest first: defaults, the config file, .env files and
// environment. An empty path reads ConfigPath() when it exists; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := newViper()
	if path == "" {
		if p, err := ConfigPath(); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				path = p
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// loadEnvFiles loads .env then .env.local. Neither overrides variables
// already set in the environment.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// Validate reports the first bad value, wrapped in ErrInvalid
func (c *Config) Validate() error {
	switch {
	case c.MaxQueueSize < 1:
		return invalid("max_queue_size", c.MaxQueueSize)
	case c.SampleRate < 1:
		return invalid("sample_rate", c.SampleRate)
	case c.ProcessingIntervalMS < 1:
		return invalid("processing_interval_ms", c.ProcessingIntervalMS)
	case c.BatchBuffer < 1:
		return invalid("batch_buffer", c.BatchBuffer)
	case !slices.Contains(velocity.Profiles(), c.Velocity.Profile):
		return invalid("velocity.profile", c.Velocity.Profile)
	case math.IsNaN(c.Velocity.Sensitivity) || c.Velocity.Sensitivity <= 0:
		return invalid("velocity.sensitivity", c.Velocity.Sensitivity)
	case c.Input.PollInterval <= 0:
		return invalid("input.poll_interval", c.Input.PollInterval)
	case c.Audio.BufferFrames < 1:
		return invalid("audio.buffer_frames", c.Audio.BufferFrames)
	case c.Keyboard.Octave < 0 || c.Keyboard.Octave > 8:
		return invalid("keyboard.octave", c.Keyboard.Octave)
	case c.Keyboard.Pressure <= 0 || c.Keyboard.Pressure > 1:
		return invalid("keyboard.pressure", c.Keyboard.Pressure)
	case c.Keyboard.Gate <= 0:
		return invalid("keyboard.gate", c.Keyboard.Gate)
	}
	if _, err := debug.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	return nil
}

func invalid(key string, val any) error {
	return fmt.Errorf("%w: %s = %v", ErrInvalid, key, val)
}

// ProcessingInterval is processing_interval_ms as a duration
func (c *Config) ProcessingInterval() time.Duration {
	return time.Duration(c.ProcessingIntervalMS) * time.Millisecond
}

// Logging returns the logger settings
func (c *Config) Logging() debug.Config {
	cfg := debug.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	cfg.Output = c.Log.Output
	return cfg
}

// YAML renders the effective configuration
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the config to ConfigPath()
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := c.YAML()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
