// Package config loads memsafe's YAML configuration.
//
// Every field has a default, so a missing file is not an error:
//
//	cfg, err := config.Load("memsafe.yaml")
//
// Environment variables override the file:
//
//	MEMSAFE_LOG_LEVEL   log.level
//	MEMSAFE_LOG_FORMAT  log.format
//	MEMSAFE_ADDR        server.addr
//	MEMSAFE_COLOR       output.color
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/linear"
	"github.com/wippyai/memsafe/memory"
	"github.com/wippyai/memsafe/session"
)

// Config is the top-level configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Memory MemoryConfig `yaml:"memory"`
	Linear LinearConfig `yaml:"linear"`
	Server ServerConfig `yaml:"server"`
	Output OutputConfig `yaml:"output"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// MemoryConfig sizes the simulated memory of the reference counting demo.
type MemoryConfig struct {
	Size       uint32 `yaml:"size"`
	StackStart uint32 `yaml:"stack_start"`
}

// LinearConfig configures the wasm linear memory demonstration.
type LinearConfig struct {
	Pages    uint32 `yaml:"pages"`
	MaxPages uint32 `yaml:"max_pages"`
}

// ServerConfig configures the session server.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	Admins      []string `yaml:"admins"`
	MaxSessions int      `yaml:"max_sessions"`
	MemorySize  uint32   `yaml:"memory_size"`
}

// OutputConfig configures narration output.
type OutputConfig struct {
	Color string `yaml:"color"` // auto, always, never
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"console", "json"}
	validColors  = []string{"auto", "always", "never"}
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Memory: MemoryConfig{
			Size:       memory.DefaultSize,
			StackStart: memory.DefaultSize / 2,
		},
		Linear: LinearConfig{
			Pages:    1,
			MaxPages: 2,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxSessions: session.DefaultMaxSessions,
			MemorySize:  session.DefaultMemorySize,
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse "+path)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "marshal config")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "write "+path)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEMSAFE_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("MEMSAFE_LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv("MEMSAFE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MEMSAFE_COLOR"); v != "" {
		c.Output.Color = strings.ToLower(v)
	}
}

func invalid(field string, value any, detail string) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(strings.Split(field, ".")...).
		Value(value).
		Detail(detail).
		Build()
}

// Validate checks enumerations and memory layout.
func (c *Config) Validate() error {
	if !slices.Contains(validLevels, c.Log.Level) {
		return invalid("log.level", c.Log.Level, "valid: "+strings.Join(validLevels, ", "))
	}
	if !slices.Contains(validFormats, c.Log.Format) {
		return invalid("log.format", c.Log.Format, "valid: "+strings.Join(validFormats, ", "))
	}
	if !slices.Contains(validColors, c.Output.Color) {
		return invalid("output.color", c.Output.Color, "valid: "+strings.Join(validColors, ", "))
	}
	if c.Memory.Size == 0 {
		return invalid("memory.size", c.Memory.Size, "must be positive")
	}
	if c.Memory.StackStart > c.Memory.Size {
		return invalid("memory.stack_start", c.Memory.StackStart, "must not exceed memory.size")
	}
	if c.Linear.Pages == 0 || c.Linear.Pages > c.Linear.MaxPages {
		return invalid("linear.pages", c.Linear.Pages, "must be in 1..linear.max_pages")
	}
	if c.Server.MaxSessions < 0 {
		return invalid("server.max_sessions", c.Server.MaxSessions, "must not be negative")
	}
	if c.Server.MemorySize != 0 && c.Server.MemorySize < memory.UserSize {
		return invalid("server.memory_size", c.Server.MemorySize, "must hold at least one user")
	}
	return nil
}

// Zap builds a logger configuration. verbose forces debug level.
func (c *Config) Zap(verbose bool) (zap.Config, error) {
	var zc zap.Config
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level := c.Log.Level
	if verbose {
		level = "debug"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.Config{}, invalid("log.level", level, err.Error())
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc, nil
}

// MemoryOptions returns the simulated memory settings.
func (c *Config) MemoryOptions() memory.Config {
	return memory.Config{
		Size:       c.Memory.Size,
		StackStart: c.Memory.StackStart,
	}
}

// LinearOptions returns the linear memory settings.
func (c *Config) LinearOptions() linear.Config {
	return linear.Config{Pages: c.Linear.Pages, MaxPages: c.Linear.MaxPages}
}

// SessionOptions returns the session store settings.
func (c *Config) SessionOptions() session.Config {
	return session.Config{
		Admins:      c.Server.Admins,
		MemorySize:  c.Server.MemorySize,
		MaxSessions: c.Server.MaxSessions,
	}
}
