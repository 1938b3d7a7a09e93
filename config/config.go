package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the client and gateway binaries need.
type Config struct {
	// BaseURL is where the TUI client sends its API calls, normally the
	// gateway. No trailing slash.
	BaseURL string `yaml:"base_url"`
	// BackendURL is where the gateway relays requests to.
	BackendURL string `yaml:"backend_url"`
	// GatewayAddr is the listen address of the gateway binary.
	GatewayAddr string `yaml:"gateway_addr"`
	// QueryK is the retrieval result count sent with each query.
	QueryK int `yaml:"query_k"`
	// ReconcileDelay is how long after a successful upload the post-upload
	// document check fires.
	ReconcileDelay time.Duration `yaml:"reconcile_delay"`
	// LogFile receives zap output so the TUI screen stays clean.
	LogFile string `yaml:"log_file"`
}

// Load builds a Config from the environment, optionally layered on top of a
// YAML file named by RAGSTUDIO_CONFIG. Environment variables win.
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL:        "http://localhost:3000/api",
		BackendURL:     "http://localhost:8000",
		GatewayAddr:    ":3000",
		QueryK:         4,
		ReconcileDelay: 3 * time.Second,
		LogFile:        "ragstudio.log",
	}

	if path := os.Getenv("RAGSTUDIO_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.BaseURL = getEnvString("RAGSTUDIO_BASE_URL", cfg.BaseURL)
	cfg.BackendURL = getEnvString("BACKEND_URL", cfg.BackendURL)
	cfg.GatewayAddr = getEnvString("RAGSTUDIO_GATEWAY_ADDR", cfg.GatewayAddr)
	cfg.QueryK = getEnvInt("RAGSTUDIO_QUERY_K", cfg.QueryK)
	cfg.ReconcileDelay = getEnvDuration("RAGSTUDIO_RECONCILE_DELAY", cfg.ReconcileDelay)
	cfg.LogFile = getEnvString("RAGSTUDIO_LOG_FILE", cfg.LogFile)

	return cfg, nil
}

// getEnvString reads a string from an environment variable.
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer from an environment variable.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(val); err == nil {
			return result
		}
	}
	return defaultVal
}

// getEnvDuration reads a time.Duration from an environment variable.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if result, err := time.ParseDuration(val); err == nil {
			return result
		}
	}
	return defaultVal
}
