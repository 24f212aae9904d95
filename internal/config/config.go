// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	TunnelURL       string
	OrchestratorURL string
	ForgeURL        string

	GapThreshold      int
	HeartbeatInterval time.Duration
	HeartbeatPath     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	threshold := getEnvInt("GAP_THRESHOLD", 3)
	if threshold <= 0 {
		threshold = 3
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		FrontendURL:       getEnv("FRONTEND_URL", ""),
		DBPath:            getEnv("DB_PATH", "./data/gateway.db"),
		TunnelURL:         getEnv("BACKEND_TUNNEL_URL", ""),
		OrchestratorURL:   getEnv("ORCHESTRATOR_URL", ""),
		ForgeURL:          getEnv("FORGE_URL", ""),
		GapThreshold:      threshold,
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Minute),
		HeartbeatPath:     getEnv("HEARTBEAT_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.GapThreshold <= 0 {
		return fmt.Errorf("GAP_THRESHOLD must be > 0")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
