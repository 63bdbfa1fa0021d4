// Package config loads tableside settings.
//
// Precedence, lowest first: built-in defaults, the YAML file, then
// TABLESIDE_* environment variables. Command-line flags are applied on
// top by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tableside/internal/model"
)

// Config holds every tunable setting.
//
// Env tags carry no envDefault: an unset variable must not clobber a
// value from the file.
type Config struct {
	Database          string        `yaml:"database"            env:"TABLESIDE_DATABASE"`
	LogLevel          string        `yaml:"log_level"           env:"TABLESIDE_LOG_LEVEL"`
	LogFormat         string        `yaml:"log_format"          env:"TABLESIDE_LOG_FORMAT"`
	PollInterval      time.Duration `yaml:"poll_interval"       env:"TABLESIDE_POLL_INTERVAL"`
	LowStockThreshold int           `yaml:"low_stock_threshold" env:"TABLESIDE_LOW_STOCK_THRESHOLD"`
	OrderingBaseURL   string        `yaml:"ordering_base_url"   env:"TABLESIDE_ORDERING_BASE_URL"`
	Seed              string        `yaml:"seed"                env:"TABLESIDE_SEED"`
	OTLPEndpoint      string        `yaml:"otlp_endpoint"       env:"TABLESIDE_OTLP_ENDPOINT"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Database:          "tableside.db",
		LogLevel:          "info",
		LogFormat:         "text",
		PollInterval:      time.Second,
		LowStockThreshold: model.DefaultLowStockThreshold,
		OrderingBaseURL:   "http://localhost:3000",
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty), and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML rejects unknown keys so typos surface instead of being ignored.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Database == "" {
		return errors.New("config: database must not be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format must be text or json, got %q", c.LogFormat)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("config: low_stock_threshold must not be negative, got %d", c.LowStockThreshold)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown log_level %q", s)
}

// NewLogger builds the process logger described by c.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
