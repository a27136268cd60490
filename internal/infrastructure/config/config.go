// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	window := cfg.Attribution.PendingWindow
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Attribution   AttributionConfig   `yaml:"attribution"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SchedulerConfig controls the background resync and sweep timers
type SchedulerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ResyncInterval time.Duration `yaml:"resync_interval"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	SnapshotPath   string        `yaml:"snapshot_path"` // scraper output read on each resync
}

// AttributionConfig holds payee attribution settings
type AttributionConfig struct {
	PendingWindow     time.Duration `yaml:"pending_window"`
	AmountTolerance   float64       `yaml:"amount_tolerance"`
	DateToleranceDays int           `yaml:"date_tolerance_days"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns a configuration with every field set.
func Defaults() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: "utility_ledger.db",
		},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Scheduler: SchedulerConfig{
			Enabled:        false,
			ResyncInterval: 6 * time.Hour,
			SweepInterval:  5 * time.Minute,
		},
		Attribution: AttributionConfig{
			PendingWindow:   2 * time.Hour,
			AmountTolerance: 0.01,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Load reads and parses the config file. Fields missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${LEDGER_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	d := Defaults()
	return &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("LEDGER_DB_PATH", d.Storage.DatabasePath),
		},
		Server: ServerConfig{
			Port:           getEnvInt("LEDGER_PORT", d.Server.Port),
			AllowedOrigins: getEnvList("LEDGER_ALLOWED_ORIGINS", d.Server.AllowedOrigins),
		},
		Scheduler: SchedulerConfig{
			Enabled:        getEnvBool("LEDGER_SCHEDULER_ENABLED", d.Scheduler.Enabled),
			ResyncInterval: getEnvDuration("LEDGER_RESYNC_INTERVAL", d.Scheduler.ResyncInterval),
			SweepInterval:  getEnvDuration("LEDGER_SWEEP_INTERVAL", d.Scheduler.SweepInterval),
			SnapshotPath:   os.Getenv("LEDGER_SNAPSHOT_PATH"),
		},
		Attribution: AttributionConfig{
			PendingWindow:     getEnvDuration("LEDGER_PENDING_WINDOW", d.Attribution.PendingWindow),
			AmountTolerance:   getEnvFloat("LEDGER_AMOUNT_TOLERANCE", d.Attribution.AmountTolerance),
			DateToleranceDays: getEnvInt("LEDGER_DATE_TOLERANCE_DAYS", 0),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", d.Observability.Logging.Level),
				Format: getEnv("LOG_FORMAT", d.Observability.Logging.Format),
			},
		},
	}
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Storage.DatabasePath) == "" {
		errs = append(errs, errors.New("storage.database_path is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Scheduler.Enabled {
		if c.Scheduler.ResyncInterval <= 0 {
			errs = append(errs, errors.New("scheduler.resync_interval must be positive"))
		}
		if c.Scheduler.SweepInterval <= 0 {
			errs = append(errs, errors.New("scheduler.sweep_interval must be positive"))
		}
	}
	if c.Attribution.PendingWindow < 0 {
		errs = append(errs, errors.New("attribution.pending_window cannot be negative"))
	}
	if c.Attribution.AmountTolerance < 0 {
		errs = append(errs, errors.New("attribution.amount_tolerance cannot be negative"))
	}
	if c.Attribution.DateToleranceDays < 0 {
		errs = append(errs, errors.New("attribution.date_tolerance_days cannot be negative"))
	}
	switch c.Observability.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("observability.logging.format %q must be text or json", c.Observability.Logging.Format))
	}

	return errors.Join(errs...)
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(val); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseFloat(val, 64); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseBool(val); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if result, err := time.ParseDuration(val); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvList splits a comma separated variable
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
