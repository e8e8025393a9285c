package scorestudents

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	IndexResults  bool          `mapstructure:"index_results"`
	TopLimit      int           `mapstructure:"top_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 2,
		Timeout:       2 * time.Minute,
		TopLimit:      20,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.TopLimit <= 0 || c.TopLimit > maxTopLimit {
		return fmt.Errorf("top_limit must be between 1 and %d", maxTopLimit)
	}
	return nil
}
