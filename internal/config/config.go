// Package config loads server settings from a YAML file, a .env file and
// environment variables, in that order of precedence (last wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/annelo/envstream/internal/errs"
	"github.com/annelo/envstream/internal/layout"
	"github.com/annelo/envstream/internal/streaming"
)

// Config holds all configuration for the streaming server
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	World     WorldConfig     `yaml:"world"`
	Streaming StreamingConfig `yaml:"streaming"`
	Layout    layout.Params   `yaml:"layout"`
	Sink      SinkConfig      `yaml:"sink"`
	Runner    RunnerConfig    `yaml:"runner"`
	Journal   JournalConfig   `yaml:"journal"`
	Plugins   PluginsConfig   `yaml:"plugins"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the gRPC listener settings
type ServerConfig struct {
	GRPCAddr   string        `yaml:"grpc_addr" validate:"required"`
	TickPeriod time.Duration `yaml:"tick_period" validate:"gt=0"`
	AdminREPL  bool          `yaml:"admin_repl"`
}

// WorldConfig holds generation inputs shared by every chunk
type WorldConfig struct {
	// Seed 0 picks a random seed at startup.
	Seed int64 `yaml:"seed"`
	// PiecesFile optionally overrides the built-in piece registry.
	PiecesFile string `yaml:"pieces_file"`
}

// StreamingConfig extends the controller settings with policy choices
type StreamingConfig struct {
	streaming.Config `yaml:",inline"`
	Interval         time.Duration `yaml:"interval" validate:"gt=0"`
	// ThemePolicy is "threshold", "noise" or a name registered by a plugin.
	ThemePolicy string           `yaml:"theme_policy" validate:"required"`
	Difficulty  DifficultyConfig `yaml:"difficulty"`
}

// DifficultyConfig parameterises the distance difficulty policy
type DifficultyConfig struct {
	Divisor float64 `yaml:"divisor" validate:"gt=0"`
	Min     float64 `yaml:"min" validate:"gte=1"`
	Max     float64 `yaml:"max" validate:"gtefield=Min"`
}

// SinkConfig holds instance budget settings
type SinkConfig struct {
	PoolSize int `yaml:"pool_size" validate:"gte=0"`
	// InstanceCapScale multiplies every MaxInstances (0.7 on low-end devices).
	InstanceCapScale float64 `yaml:"instance_cap_scale" validate:"gt=0,lte=1"`
}

// RunnerConfig describes the tracked entity
type RunnerConfig struct {
	ID    string     `yaml:"id" validate:"required"`
	Name  string     `yaml:"name"`
	Speed float64    `yaml:"speed" validate:"gte=0"`
	Start [3]float64 `yaml:"start"`
}

// JournalConfig controls the compressed tick journal
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir" validate:"required_if=Enabled true"`
}

// PluginsConfig holds plugin loading settings
type PluginsConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Default returns the shipped configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCAddr:   ":50051",
			TickPeriod: 50 * time.Millisecond,
			AdminREPL:  true,
		},
		World: WorldConfig{Seed: 12345},
		Streaming: StreamingConfig{
			Config:      streaming.DefaultConfig(),
			Interval:    2 * time.Second,
			ThemePolicy: "threshold",
			Difficulty:  DifficultyConfig{Divisor: 2000, Min: 1, Max: 3},
		},
		Layout: layout.DefaultParams(),
		Sink:   SinkConfig{PoolSize: 32, InstanceCapScale: 1},
		Runner: RunnerConfig{ID: "runner", Name: "Runner", Speed: 600},
		Journal: JournalConfig{
			Dir: "./journal",
		},
		Plugins: PluginsConfig{Dir: "./plugins"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads path (optional), then dotenv files, then the environment, and
// validates the result. Every failure is a *errs.ConfigurationError.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapConfig("file", "cannot read "+path, err)
		}
		if err := cfg.parse(data); err != nil {
			return nil, err
		}
	}
	if err := LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.parse(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parse(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errs.WrapConfig("file", "malformed yaml", err)
	}
	return nil
}

// LoadDotEnv loads the given .env files, skipping ones that do not exist.
// Variables already set in the environment are not overridden.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errs.WrapConfig("env_file", "cannot load "+f, err)
		}
	}
	return nil
}

// Environment variable names
const (
	EnvGRPCAddr       = "ENVSTREAM_GRPC_ADDR"
	EnvSeed           = "ENVSTREAM_SEED"
	EnvLoadRadius     = "ENVSTREAM_LOAD_RADIUS"
	EnvInterval       = "ENVSTREAM_STREAM_INTERVAL"
	EnvWorkers        = "ENVSTREAM_WORKERS"
	EnvThemePolicy    = "ENVSTREAM_THEME_POLICY"
	EnvJournalDir     = "ENVSTREAM_JOURNAL_DIR"
	EnvPluginDir      = "ENVSTREAM_PLUGIN_DIR"
	EnvLogLevel       = "ENVSTREAM_LOG_LEVEL"
	EnvLogFormat      = "ENVSTREAM_LOG_FORMAT"
	EnvInstanceScale  = "ENVSTREAM_INSTANCE_CAP_SCALE"
	EnvPiecesFile     = "ENVSTREAM_PIECES_FILE"
	EnvMaxGenerations = "ENVSTREAM_MAX_GENERATIONS_PER_TICK"
)

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	c.Server.GRPCAddr = getEnv(EnvGRPCAddr, c.Server.GRPCAddr)
	c.Streaming.ThemePolicy = getEnv(EnvThemePolicy, c.Streaming.ThemePolicy)
	c.Plugins.Dir = getEnv(EnvPluginDir, c.Plugins.Dir)
	c.Logging.Level = getEnv(EnvLogLevel, c.Logging.Level)
	c.Logging.Format = getEnv(EnvLogFormat, c.Logging.Format)
	c.World.PiecesFile = getEnv(EnvPiecesFile, c.World.PiecesFile)
	if dir := os.Getenv(EnvJournalDir); dir != "" {
		c.Journal.Enabled = true
		c.Journal.Dir = dir
	}

	var err error
	if c.World.Seed, err = getInt64Env(EnvSeed, c.World.Seed); err != nil {
		return err
	}
	if c.Streaming.LoadRadius, err = getFloatEnv(EnvLoadRadius, c.Streaming.LoadRadius); err != nil {
		return err
	}
	if c.Streaming.Interval, err = getDurationEnv(EnvInterval, c.Streaming.Interval); err != nil {
		return err
	}
	if c.Streaming.Workers, err = getIntEnv(EnvWorkers, c.Streaming.Workers); err != nil {
		return err
	}
	if c.Streaming.MaxGenerationsPerTick, err = getIntEnv(EnvMaxGenerations, c.Streaming.MaxGenerationsPerTick); err != nil {
		return err
	}
	if c.Sink.InstanceCapScale, err = getFloatEnv(EnvInstanceScale, c.Sink.InstanceCapScale); err != nil {
		return err
	}
	return nil
}

var validate = validator.New()

// Validate runs struct tag checks, then the semantic checks of each
// component.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return errs.WrapConfig(fieldPath(fe.Namespace()), "failed "+fe.Tag(), err)
		}
		return errs.WrapConfig("config", "invalid", err)
	}
	if err := c.Streaming.Config.Validate(); err != nil {
		return err
	}
	return nil
}

// fieldPath turns "Config.Streaming.Difficulty.Min" into "streaming.difficulty.min".
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

// Helper functions for environment variable access

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, errs.WrapConfig(key, fmt.Sprintf("invalid integer %q", value), err)
	}
	return v, nil
}

func getInt64Env(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue, errs.WrapConfig(key, fmt.Sprintf("invalid integer %q", value), err)
	}
	return v, nil
}

func getFloatEnv(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue, errs.WrapConfig(key, fmt.Sprintf("invalid number %q", value), err)
	}
	return v, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, errs.WrapConfig(key, fmt.Sprintf("invalid duration %q", value), err)
	}
	return d, nil
}
