package batch

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// SweepConfig defines one recurring evaluation sweep: a cron schedule
// plus the sampling and dispatch overrides applied to each triggered run.
type SweepConfig struct {
	Name         string   `toml:"name"`
	Cron         string   `toml:"cron"`
	SamplingRate float64  `toml:"sampling_rate"`
	Seed         int64    `toml:"seed"`
	Categories   []string `toml:"categories"`
	ImageTypes   []string `toml:"image_types"`
	MaxTasks     int      `toml:"max_tasks"`
	Model        string   `toml:"model"`
}

// ScheduleConfig holds all sweep configurations
type ScheduleConfig struct {
	Sweeps []SweepConfig `toml:"sweep"`
}

// Validate checks the sweep definition and fills defaults
func (c *SweepConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("sweep name is required")
	}
	if c.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(c.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be in (0, 1], got %v", c.SamplingRate)
	}
	return nil
}

// LoadScheduleConfig loads sweep configuration from a TOML file
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScheduleConfig{}, nil
		}
		return nil, err
	}

	var cfg ScheduleConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Sweeps {
		if err := cfg.Sweeps[i].Validate(); err != nil {
			return nil, fmt.Errorf("sweep %d: %w", i, err)
		}
	}

	return &cfg, nil
}
