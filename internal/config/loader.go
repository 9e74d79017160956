package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML config at path and overlays it onto the defaults.
// A missing file returns the defaults without error; a malformed file is
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize clamps nonsensical values back to the defaults so a partial
// config file cannot disable the concurrency bounds or retry budget.
func (c *Config) normalize() {
	def := Default()
	if c.Concurrency.Regions <= 0 {
		c.Concurrency.Regions = def.Concurrency.Regions
	}
	if c.Concurrency.Services <= 0 {
		c.Concurrency.Services = def.Concurrency.Services
	}
	if c.Concurrency.Checks <= 0 {
		c.Concurrency.Checks = def.Concurrency.Checks
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = def.Retry.InitialDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = def.Retry.MaxDelay
	}
	if c.Retry.Multiplier < 1 {
		c.Retry.Multiplier = def.Retry.Multiplier
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if len(c.Scoring.Weights) == 0 {
		c.Scoring.Weights = def.Scoring.Weights
	}
}
