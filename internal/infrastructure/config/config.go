// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration.
type Config struct {
	Topology  TopologyConfig
	Workers   WorkerConfig
	Diag      DiagConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// TopologyConfig describes the node and device topology registered
// before FinishInitialization.
type TopologyConfig struct {
	Nodes      int    `envconfig:"RUNTIME_NODES" default:"1"`
	CPUDevices int    `envconfig:"RUNTIME_CPU_DEVICES" default:"1"`
	CPUMoniker string `envconfig:"RUNTIME_CPU_MONIKER" default:"cpu"`
}

// WorkerConfig holds defaults for workers created at startup.
type WorkerConfig struct {
	DefaultName string `envconfig:"RUNTIME_WORKER_NAME" default:"main"`
	QueueDepth  int    `envconfig:"RUNTIME_QUEUE_DEPTH" default:"64"`
}

// DiagConfig holds diagnostics HTTP server configuration.
type DiagConfig struct {
	Addr    string `envconfig:"RUNTIME_DIAG_ADDR" default:"127.0.0.1:9090"`
	Enabled bool   `envconfig:"RUNTIME_DIAG_ENABLED" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds diagnostics server rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Topology: TopologyConfig{
			Nodes:      1,
			CPUDevices: 1,
			CPUMoniker: "cpu",
		},
		Workers: WorkerConfig{
			DefaultName: "main",
			QueueDepth:  64,
		},
		Diag: DiagConfig{
			Addr:    "127.0.0.1:9090",
			Enabled: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
