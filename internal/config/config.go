package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the telemetry services.
type Config struct {
	DatabaseURL  string
	ValkeyAddr   string
	Port         int
	BearerToken  string
	DefaultLimit int
	CacheDir     string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:         8080,
		DefaultLimit: 100,
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.ValkeyAddr = os.Getenv("VALKEY_ADDR")

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	}

	if limitStr := os.Getenv("API_DEFAULT_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.DefaultLimit = limit
		} else {
			return cfg, fmt.Errorf("invalid API_DEFAULT_LIMIT: %s", limitStr)
		}
	}

	cfg.CacheDir = os.Getenv("CACHE_DIR")
	if cfg.CacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.CacheDir = home + "/.tankwatch"
		} else {
			cfg.CacheDir = ".tankwatch"
		}
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	return cfg, nil
}

// SensorConfig holds settings for the synthetic sensor feeder.
type SensorConfig struct {
	IngestURL string
	SendSpec  string
}

// LoadSensor reads the feeder configuration; it needs no database.
func LoadSensor() SensorConfig {
	_ = godotenv.Load()

	cfg := SensorConfig{
		IngestURL: "http://localhost:8080/arduino-data",
		SendSpec:  "@every 1m",
	}
	if url := os.Getenv("INGEST_URL"); url != "" {
		cfg.IngestURL = url
	}
	if spec := os.Getenv("SEND_SPEC"); spec != "" {
		cfg.SendSpec = spec
	}
	return cfg
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
