package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the collection engine
type Config struct {
	// Rate limiting for outbound acquisition requests
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry behaviour for transient fetch failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Circuit breaker guarding the acquisition source
	Breaker BreakerConfig `yaml:"breaker" json:"breaker"`

	// Per-target collection settings
	Collect CollectConfig `yaml:"collect" json:"collect"`

	// Durable store settings
	Store StoreConfig `yaml:"store" json:"store"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RateLimitConfig holds token bucket and adaptive limiter configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" json:"burst_size"`
	Adaptive          bool    `yaml:"adaptive" json:"adaptive"`
	MinRate           float64 `yaml:"min_rate" json:"min_rate"`
	MaxRate           float64 `yaml:"max_rate" json:"max_rate"`
	BackoffFactor     float64 `yaml:"backoff_factor" json:"backoff_factor"`
	RecoveryFactor    float64 `yaml:"recovery_factor" json:"recovery_factor"`
	RecoveryThreshold int     `yaml:"recovery_threshold" json:"recovery_threshold"`
}

// RetryConfig holds retry and backoff configuration
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
}

// CollectConfig holds per-target acquisition settings
type CollectConfig struct {
	DefaultCount      int           `yaml:"default_count" json:"default_count"`
	MaxStalledBatches int           `yaml:"max_stalled_batches" json:"max_stalled_batches"`
	MaxFlatBatches    int           `yaml:"max_flat_batches" json:"max_flat_batches"`
	SessionBudget     time.Duration `yaml:"session_budget" json:"session_budget"`
	ConcurrentTargets int           `yaml:"concurrent_targets" json:"concurrent_targets"`
}

// StoreConfig holds durable store settings
type StoreConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10.0,
			BurstSize:         20,
			Adaptive:          true,
			MinRate:           1.0,
			MaxRate:           20.0,
			BackoffFactor:     0.5,
			RecoveryFactor:    1.1,
			RecoveryThreshold: 20,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			BaseDelay:    1 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.5,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
		},
		Collect: CollectConfig{
			DefaultCount:      300,
			MaxStalledBatches: 3,
			MaxFlatBatches:    5,
			SessionBudget:     0, // no wall-clock budget
			ConcurrentTargets: 1,
		},
		Store: StoreConfig{
			DataDir: "./data_store",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if rps := os.Getenv("TAGSCRAPER_REQUESTS_PER_SECOND"); rps != "" {
		if val, err := strconv.ParseFloat(rps, 64); err == nil && val > 0 {
			c.RateLimit.RequestsPerSecond = val
		}
	}
	if burst := os.Getenv("TAGSCRAPER_BURST_SIZE"); burst != "" {
		if val, err := strconv.Atoi(burst); err == nil && val > 0 {
			c.RateLimit.BurstSize = val
		}
	}
	if adaptive := os.Getenv("TAGSCRAPER_ADAPTIVE"); adaptive != "" {
		c.RateLimit.Adaptive = strings.ToLower(adaptive) == "true"
	}
	if retries := os.Getenv("TAGSCRAPER_MAX_RETRIES"); retries != "" {
		if val, err := strconv.Atoi(retries); err == nil && val > 0 {
			c.Retry.MaxAttempts = val
		}
	}
	if count := os.Getenv("TAGSCRAPER_TARGET_COUNT"); count != "" {
		if val, err := strconv.Atoi(count); err == nil && val > 0 {
			c.Collect.DefaultCount = val
		}
	}
	if budget := os.Getenv("TAGSCRAPER_SESSION_BUDGET"); budget != "" {
		if val, err := time.ParseDuration(budget); err == nil && val > 0 {
			c.Collect.SessionBudget = val
		}
	}
	if dataDir := os.Getenv("TAGSCRAPER_DATA_DIR"); dataDir != "" {
		c.Store.DataDir = dataDir
	}
	if logLevel := os.Getenv("TAGSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".tagscraper.yaml",
		".tagscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "tagscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "tagscraper", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".tagscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests per second must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.RateLimit.Adaptive {
		if c.RateLimit.MinRate <= 0 || c.RateLimit.MaxRate < c.RateLimit.MinRate {
			errs = append(errs, errors.New("adaptive rate bounds must satisfy 0 < min <= max"))
		}
		if c.RateLimit.BackoffFactor <= 0 || c.RateLimit.BackoffFactor >= 1 {
			errs = append(errs, errors.New("backoff factor must be in (0, 1)"))
		}
		if c.RateLimit.RecoveryFactor <= 1 {
			errs = append(errs, errors.New("recovery factor must be greater than 1"))
		}
		if c.RateLimit.RecoveryThreshold <= 0 {
			errs = append(errs, errors.New("recovery threshold must be positive"))
		}
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max retry attempts must be positive"))
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry delays must satisfy 0 < base <= max"))
	}

	if c.Breaker.FailureThreshold <= 0 {
		errs = append(errs, errors.New("breaker failure threshold must be positive"))
	}
	if c.Breaker.RecoveryTimeout <= 0 {
		errs = append(errs, errors.New("breaker recovery timeout must be positive"))
	}

	if c.Collect.MaxStalledBatches <= 0 {
		errs = append(errs, errors.New("max stalled batches must be positive"))
	}
	if c.Collect.MaxFlatBatches <= 0 {
		errs = append(errs, errors.New("max flat batches must be positive"))
	}
	if c.Collect.ConcurrentTargets <= 0 {
		errs = append(errs, errors.New("concurrent targets must be positive"))
	}

	if c.Store.DataDir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if rps, ok := flags["rate-limit"].(float64); ok && rps > 0 {
		c.RateLimit.RequestsPerSecond = rps
	}
	if count, ok := flags["count"].(int); ok && count > 0 {
		c.Collect.DefaultCount = count
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Collect.ConcurrentTargets = concurrent
	}
	if budget, ok := flags["budget"].(time.Duration); ok && budget > 0 {
		c.Collect.SessionBudget = budget
	}
	if dataDir, ok := flags["data-dir"].(string); ok && dataDir != "" {
		c.Store.DataDir = dataDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tagscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
