// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"os"
	"time"
)

// SystemConfig holds the endpoint and credentials for one external system
type SystemConfig struct {
	BaseURL string
	APIKey  string
}

// Config is the full service configuration
type Config struct {
	ServerPort string

	// RedisURL may be empty: the service then runs in local-broadcast-only
	// mode without cross-instance fan-out.
	RedisURL string

	// JWTSecret may be empty: bearer-token validation is then disabled.
	JWTSecret string

	ERP SystemConfig
	B2B SystemConfig
	B2C SystemConfig

	// FullSyncInterval is how often the orchestrator runs a full sync
	FullSyncInterval time.Duration

	// HealthCheckInterval is how often the orchestrator sweeps component health
	HealthCheckInterval time.Duration

	// PingInterval and PongTimeout drive WebSocket liveness
	PingInterval time.Duration
	PongTimeout  time.Duration

	// DeadLetterPath is the sqlite journal path; empty disables the journal
	DeadLetterPath string
}

// Load reads configuration from environment variables, applying defaults
// and validating required fields.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		RedisURL:   os.Getenv("REDIS_URL"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		ERP: SystemConfig{
			BaseURL: os.Getenv("ERP_BASE_URL"),
			APIKey:  os.Getenv("ERP_API_KEY"),
		},
		B2B: SystemConfig{
			BaseURL: os.Getenv("B2B_BASE_URL"),
			APIKey:  os.Getenv("B2B_API_KEY"),
		},
		B2C: SystemConfig{
			BaseURL: os.Getenv("B2C_BASE_URL"),
			APIKey:  os.Getenv("B2C_API_KEY"),
		},
		DeadLetterPath: os.Getenv("DEAD_LETTER_PATH"),
	}

	var err error
	if cfg.FullSyncInterval, err = getDuration("FULL_SYNC_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HealthCheckInterval, err = getDuration("HEALTH_CHECK_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PingInterval, err = getDuration("WS_PING_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.PongTimeout, err = getDuration("WS_PONG_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.ERP.BaseURL == "" {
		return nil, errors.New("ERP_BASE_URL is required")
	}
	if cfg.B2B.BaseURL == "" {
		return nil, errors.New("B2B_BASE_URL is required")
	}
	if cfg.B2C.BaseURL == "" {
		return nil, errors.New("B2C_BASE_URL is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("invalid " + key + " format")
	}
	return d, nil
}
