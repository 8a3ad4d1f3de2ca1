package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Paths    PathsConfig    `toml:"paths"`
	Sampling SamplingConfig `toml:"sampling"`
	Dispatch DispatchConfig `toml:"dispatch"`
	Producer ProducerConfig `toml:"producer"`
}

// PathsConfig holds dataset and output locations
type PathsConfig struct {
	QuestionGlob string `toml:"question_glob"`
	ImageBase    string `toml:"image_base"`
	OutputRoot   string `toml:"output_root"`
	DatabasePath string `toml:"database_path"`
}

// SamplingConfig holds stratified sampling settings
type SamplingConfig struct {
	Rate       float64  `toml:"rate"`
	Seed       int64    `toml:"seed"`
	Categories []string `toml:"categories"`
	ImageTypes []string `toml:"image_types"`
	MaxTasks   int      `toml:"max_tasks"`
}

// DispatchConfig holds worker pool and retry settings
type DispatchConfig struct {
	Concurrency        int      `toml:"concurrency"`
	MaxAttempts        int      `toml:"max_attempts"`
	CallTimeoutSecs    int      `toml:"call_timeout_secs"`
	BackoffBaseMillis  int      `toml:"backoff_base_millis"`
	BackoffCapMillis   int      `toml:"backoff_cap_millis"`
	QPS                float64  `toml:"qps"`
	FailureSignatures  []string `toml:"failure_signatures"`
	MaxConsecutive     int      `toml:"max_consecutive_errors"`
	ErrorRateThreshold float64  `toml:"error_rate_threshold"`
	ErrorRateMinCount  int      `toml:"error_rate_min_samples"`
}

// ProducerConfig selects and configures the answer producer
type ProducerConfig struct {
	// Kind is "http" or "command".
	Kind     string `toml:"kind"`
	Model    string `toml:"model"`
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
	Command  string `toml:"command"`
	// Args are extra arguments for the command producer.
	Args []string `toml:"args"`
	// Env holds named values forwarded to the command producer as
	// environment variables.
	Env map[string]string `toml:"env"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Paths: PathsConfig{
			QuestionGlob: filepath.Join(home, "data", "processed_questions", "*.json"),
			ImageBase:    filepath.Join(home, "data", "imgs"),
			OutputRoot:   "output",
			DatabasePath: filepath.Join(home, ".mmbench", "history.db"),
		},
		Sampling: SamplingConfig{
			Rate:       1.0,
			Seed:       42,
			ImageTypes: []string{"SD"},
		},
		Dispatch: DispatchConfig{
			Concurrency:        4,
			MaxAttempts:        3,
			CallTimeoutSecs:    600,
			BackoffBaseMillis:  1000,
			BackoffCapMillis:   60000,
			MaxConsecutive:     5,
			ErrorRateThreshold: 0.20,
			ErrorRateMinCount:  20,
		},
		Producer: ProducerConfig{
			Kind: "http",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.Paths.QuestionGlob = ExpandPath(cfg.Paths.QuestionGlob)
	cfg.Paths.ImageBase = ExpandPath(cfg.Paths.ImageBase)
	cfg.Paths.OutputRoot = ExpandPath(cfg.Paths.OutputRoot)
	cfg.Paths.DatabasePath = ExpandPath(cfg.Paths.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the ranges the core depends on
func (c *Config) Validate() error {
	if c.Sampling.Rate <= 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be in (0, 1], got %v", c.Sampling.Rate)
	}
	if c.Dispatch.Concurrency < 1 {
		return fmt.Errorf("dispatch.concurrency must be >= 1, got %d", c.Dispatch.Concurrency)
	}
	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch.max_attempts must be >= 1, got %d", c.Dispatch.MaxAttempts)
	}
	switch c.Producer.Kind {
	case "http", "command", "static":
	default:
		return fmt.Errorf("producer.kind must be http, command or static, got %q", c.Producer.Kind)
	}
	return nil
}

// CallTimeout returns the per-call producer timeout
func (c *DispatchConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

// BackoffBase returns the initial retry delay
func (c *DispatchConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMillis) * time.Millisecond
}

// BackoffCap returns the maximum retry delay
func (c *DispatchConfig) BackoffCap() time.Duration {
	return time.Duration(c.BackoffCapMillis) * time.Millisecond
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mmbench", "config.toml")
}
