package config

import (
	"time"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// Config is the engine configuration. It is loaded from an optional YAML
// file; every field has a working default so a missing file is not an
// error. Backoff parameters and severity weights are deliberately policy,
// not hardcoded constants — tune them against the target account's rate
// limits before wide deployment.
type Config struct {
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Retry       RetryConfig       `yaml:"retry"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Cache       CacheConfig       `yaml:"cache"`
	Scoring     ScoringConfig     `yaml:"scoring"`
}

// ConcurrencyConfig bounds the three fan-out levels of a scan. The bounds
// exist to respect upstream API rate limits: an unbounded fan-out across
// dozens of services triggers systemic throttling.
type ConcurrencyConfig struct {
	// Regions bounds how many regions are scanned in parallel.
	Regions int `yaml:"regions"`

	// Services bounds how many service scanners run in parallel per region.
	Services int `yaml:"services"`

	// Checks bounds concurrent check evaluation within one scanner.
	Checks int `yaml:"checks"`
}

// RetryConfig controls the backoff applied to throttled API calls.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       bool          `yaml:"jitter"`
}

// RateLimitConfig is the shared token-bucket gate applied before discovery
// calls, across all scanners of one scan.
type RateLimitConfig struct {
	// PerSecond is the sustained request rate. Zero disables the gate.
	PerSecond float64 `yaml:"per_second"`

	// Burst is the token bucket size. Defaults to twice PerSecond.
	Burst int `yaml:"burst"`
}

// CacheConfig sizes the per-scan resource cache.
type CacheConfig struct {
	// TTL should comfortably exceed the expected scan duration; the cache
	// exists for call deduplication within one run, not cross-run freshness.
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries caps cache size. Zero or negative disables eviction.
	MaxEntries int `yaml:"max_entries"`
}

// ScoringConfig holds the severity weights used for the overall 0-100
// posture score. Higher weight means a failed finding of that severity
// drags the score down harder.
type ScoringConfig struct {
	Weights map[models.Severity]float64 `yaml:"weights"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Concurrency: ConcurrencyConfig{
			Regions:  4,
			Services: 6,
			Checks:   8,
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		RateLimit: RateLimitConfig{
			PerSecond: 20,
			Burst:     40,
		},
		Cache: CacheConfig{
			TTL:        30 * time.Minute,
			MaxEntries: 10000,
		},
		Scoring: ScoringConfig{
			Weights: map[models.Severity]float64{
				models.SeverityCritical: 10,
				models.SeverityHigh:     6,
				models.SeverityMedium:   3,
				models.SeverityLow:      1,
				models.SeverityInfo:     0.5,
			},
		},
	}
}
