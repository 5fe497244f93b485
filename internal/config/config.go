// Package config centralizes environment-driven configuration for the
// tradewire CLI. A .env file is loaded when present so local development
// does not need exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backend names accepted in TRADEWIRE_STORE.
const (
	StoreMemory = "memory"
	StoreBBolt  = "bbolt"
	StoreSQLite = "sqlite"
)

// Config carries every setting the CLI needs.
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Session SessionConfig
	Log     LogConfig
}

// APIConfig locates the trading backend.
type APIConfig struct {
	BaseURL string
	FeedURL string
}

// StorageConfig selects and locates the session store backend.
type StorageConfig struct {
	Backend    string // memory, bbolt or sqlite
	Path       string // database file for the persistent backends
	Passphrase string // non-empty enables at-rest encryption of stored values
}

// SessionConfig tunes the sliding-expiry policy.
type SessionConfig struct {
	Window time.Duration
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string // debug, info, warn or error
}

// Load builds a Config from the environment, reading .env first if one
// exists. Missing variables fall back to defaults; malformed ones are
// errors.
func Load() (*Config, error) {
	_ = godotenv.Load()

	windowMinutes, err := strconv.Atoi(getEnv("TRADEWIRE_SESSION_WINDOW_MINUTES", "19"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRADEWIRE_SESSION_WINDOW_MINUTES: %w", err)
	}
	if windowMinutes <= 0 {
		return nil, fmt.Errorf("TRADEWIRE_SESSION_WINDOW_MINUTES must be positive, got %d", windowMinutes)
	}

	backend := getEnv("TRADEWIRE_STORE", StoreBBolt)
	switch backend {
	case StoreMemory, StoreBBolt, StoreSQLite:
	default:
		return nil, fmt.Errorf("unknown TRADEWIRE_STORE %q", backend)
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnv("TRADEWIRE_API_URL", "http://localhost:9200"),
			FeedURL: getEnv("TRADEWIRE_FEED_URL", "ws://localhost:9200/stream"),
		},
		Storage: StorageConfig{
			Backend:    backend,
			Path:       getEnv("TRADEWIRE_STORE_PATH", defaultStorePath(backend)),
			Passphrase: getEnv("TRADEWIRE_PASSPHRASE", ""),
		},
		Session: SessionConfig{
			Window: time.Duration(windowMinutes) * time.Minute,
		},
		Log: LogConfig{
			Level: getEnv("TRADEWIRE_LOG_LEVEL", "info"),
		},
	}
	return cfg, nil
}

func defaultStorePath(backend string) string {
	switch backend {
	case StoreSQLite:
		return "tradewire.db"
	case StoreBBolt:
		return "tradewire.bolt"
	default:
		return ""
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
