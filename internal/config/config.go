package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config captures the runtime configuration for the ConfigRelay service.
type Config struct {
	Addr          string
	Environment   string
	ServerVersion string

	Gate GateConfig
}

// Load reads environment variables and falls back to sane defaults.
// A .env file in the working directory is honoured when present.
func Load() (Config, error) {
	// Best effort; absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		Addr:          getEnv("CONFIGRELAY_ADDR", ":8080"),
		Environment:   getEnv("CONFIGRELAY_ENV", "development"),
		ServerVersion: getEnv("CONFIGRELAY_VERSION", "1.2.0"),
		Gate:          LoadGateConfig(),
	}

	if len(cfg.Gate.APIKeys) == 0 {
		return Config{}, fmt.Errorf("no platform API keys configured (set API_KEY_IOS, API_KEY_ANDROID or API_KEY_WEB)")
	}

	return cfg, nil
}

// Production reports whether the service runs with production error masking.
func (c Config) Production() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// getBoolEnv reads a boolean environment variable
func getBoolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

// getIntEnv reads an integer environment variable
func getIntEnv(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// getDurationEnv reads a duration environment variable (in seconds)
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
