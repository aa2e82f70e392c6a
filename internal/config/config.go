package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/me/flakeci/internal/logging"
)

// Duration is a time.Duration that reads "90s" or "5m" from YAML.
type Duration time.Duration

// UnmarshalYAML accepts a Go duration string or a plain number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if secs, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in Go notation.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`    // file path for sqlite (":memory:" for testing), URL for postgres
}

// SchedulerConfig controls the periodic evaluation driver.
type SchedulerConfig struct {
	Enabled              bool     `yaml:"enabled"`
	PollInterval         Duration `yaml:"poll_interval"`
	DefaultCheckInterval Duration `yaml:"default_check_interval"`
}

// EvaluatorConfig configures the external flake evaluator.
type EvaluatorConfig struct {
	Command          string   `yaml:"command"`
	Args             []string `yaml:"args"`
	Timeout          Duration `yaml:"timeout"`
	DefaultAttribute string   `yaml:"default_attribute"`
	// MaxConcurrent bounds simultaneous evaluations; 0 is unbounded.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// ServerConfig holds configuration for the flakeci server.
type ServerConfig struct {
	Addr      string          `yaml:"addr"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`

	// APIToken, when set, is required as a bearer token on mutating requests.
	APIToken string `yaml:"api_token"`

	// UI serves the read-only HTML dashboard at "/".
	UI bool `yaml:"ui"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		UI:        true,
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Scheduler: SchedulerConfig{
			Enabled:              true,
			PollInterval:         Duration(30 * time.Second),
			DefaultCheckInterval: Duration(5 * time.Minute),
		},
		Evaluator: EvaluatorConfig{
			Command: "nix-eval-jobs",
			Timeout: Duration(10 * time.Minute),
		},
	}
}

// LoadFile reads a YAML config file on top of the defaults.
func LoadFile(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FLAKECI_* environment variables.
func (c *ServerConfig) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString("FLAKECI_ADDR", &c.Addr)
	setString("FLAKECI_LOG_LEVEL", &c.LogLevel)
	setString("FLAKECI_LOG_FORMAT", &c.LogFormat)
	setString("FLAKECI_DB_DRIVER", &c.Database.Driver)
	setString("FLAKECI_DB_DSN", &c.Database.DSN)
	setString("FLAKECI_EVALUATOR", &c.Evaluator.Command)
	setString("FLAKECI_API_TOKEN", &c.APIToken)

	if v := getenv("FLAKECI_EVAL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FLAKECI_EVAL_TIMEOUT: %w", err)
		}
		c.Evaluator.Timeout = Duration(d)
	}
	if v := getenv("FLAKECI_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLAKECI_MAX_CONCURRENT: %w", err)
		}
		c.Evaluator.MaxConcurrent = n
	}
	if v := getenv("FLAKECI_UI"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FLAKECI_UI: %w", err)
		}
		c.UI = b
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *ServerConfig) Validate() error {
	var err error
	if c.Addr == "" {
		err = multierror.Append(err, fmt.Errorf("listen address has not been specified"))
	}
	if !logging.IsValidLevel(c.LogLevel) {
		err = multierror.Append(err, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		err = multierror.Append(err, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			err = multierror.Append(err, fmt.Errorf("postgres requires a database dsn"))
		}
	default:
		err = multierror.Append(err, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Scheduler.Enabled && c.Scheduler.PollInterval <= 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for scheduler poll interval"))
	}
	if c.Scheduler.DefaultCheckInterval <= 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for default check interval"))
	}
	if c.Evaluator.Command == "" {
		err = multierror.Append(err, fmt.Errorf("evaluator command has not been specified"))
	}
	if c.Evaluator.Timeout <= 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for evaluator timeout"))
	}
	if c.Evaluator.MaxConcurrent < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for max concurrent evaluations"))
	}
	return err
}
