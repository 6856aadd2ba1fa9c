// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string        // Base directory for the cache database (always absolute)
	Port             int           // HTTP listen port
	LogLevel         string        // debug, info, warn, error
	DevMode          bool          // Enables permissive CORS and pretty logging
	FMPAPIKey        string        // API key for the market data provider
	FMPBaseURL       string        // Override for the market data base URL (tests)
	BaseCurrency     string        // Default comparison base currency
	FetchConcurrency int           // Max concurrent price history fetches
	FetchTimeout     time.Duration // Per-request timeout for upstream fetches
	ComparisonTTL    time.Duration // Cache TTL for whole comparison results
}

// Load reads configuration from environment variables.
// A .env file is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("SPYGLASS_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8010),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		FMPAPIKey:        getEnv("FMP_API_KEY", ""),
		FMPBaseURL:       getEnv("FMP_BASE_URL", ""),
		BaseCurrency:     getEnv("BASE_CURRENCY", "USD"),
		FetchConcurrency: getEnvAsInt("FETCH_CONCURRENCY", 3),
		FetchTimeout:     getEnvAsDuration("FETCH_TIMEOUT", 15*time.Second),
		ComparisonTTL:    getEnvAsDuration("COMPARISON_CACHE_TTL", 15*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch concurrency must be >= 1, got %d", c.FetchConcurrency)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// CacheDBPath returns the path of the client data cache database.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "client_data.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
