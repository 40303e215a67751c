// Package config loads the application configuration from a YAML file.
// Every field has a working default so the server can start without a
// config file at all.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Faults    FaultsConfig    `yaml:"faults"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig locates the SQLite snapshot database.
type DatabaseConfig struct {
	Path string `yaml:"path"` // ":memory:" for ephemeral runs
	Slot string `yaml:"slot"` // snapshot slot key
}

// LogConfig controls the slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// FaultsConfig controls simulated latency and transient-error injection.
// Used to exercise caller error-handling paths; never enabled by default.
type FaultsConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ErrorRate    float64 `yaml:"error_rate"`
	MinLatencyMs int     `yaml:"min_latency_ms"`
	MaxLatencyMs int     `yaml:"max_latency_ms"`
}

// SchedulerConfig controls the daily sweep cron.
type SchedulerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	DailySweep string `yaml:"daily_sweep"` // cron spec
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "", Port: 8080},
		Database: DatabaseConfig{Path: "zapgo.db", Slot: "ledger.v1"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Faults: FaultsConfig{
			Enabled:      false,
			ErrorRate:    0.02,
			MinLatencyMs: 250,
			MaxLatencyMs: 600,
		},
		Scheduler: SchedulerConfig{Enabled: true, DailySweep: "0 2 * * *"},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
	}
}

// Load reads the configuration file at path, applying defaults for any
// missing fields.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
