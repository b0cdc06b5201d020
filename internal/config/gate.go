package config

import (
	"time"
)

// GateConfig holds the settings for the request gate applied to the
// authenticated API surface: rate limiting, platform API keys and the
// admin secret.
type GateConfig struct {
	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int           // requests per window per client
	RateLimitWindow   time.Duration // fixed-window duration
	RateLimitClients  int           // max tracked client identities

	// Static platform keys, keyed by platform name (ios, android, web).
	// Comparison is exact match; keys are not hashed. Brute-force
	// protection is limited to the rate limiter in front of the check.
	APIKeys map[string]string

	// Admin secret for the feature-flag mutation endpoint.
	AdminKey string
}

// LoadGateConfig loads gate configuration from environment variables.
func LoadGateConfig() GateConfig {
	cfg := GateConfig{
		RateLimitEnabled:  getBoolEnv("CONFIGRELAY_RATE_LIMIT_ENABLED", true),
		RateLimitRequests: getIntEnv("CONFIGRELAY_RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getDurationEnv("CONFIGRELAY_RATE_LIMIT_WINDOW", 60*time.Second),
		RateLimitClients:  getIntEnv("CONFIGRELAY_RATE_LIMIT_CLIENTS", 10000),

		APIKeys:  make(map[string]string),
		AdminKey: getEnv("ADMIN_API_KEY", ""),
	}

	for platform, envKey := range map[string]string{
		"ios":     "API_KEY_IOS",
		"android": "API_KEY_ANDROID",
		"web":     "API_KEY_WEB",
	} {
		if v := getEnv(envKey, ""); v != "" {
			cfg.APIKeys[platform] = v
		}
	}

	return cfg
}

// PlatformFor returns the platform name a key belongs to.
func (g GateConfig) PlatformFor(key string) (string, bool) {
	for platform, k := range g.APIKeys {
		if k == key {
			return platform, true
		}
	}
	return "", false
}
