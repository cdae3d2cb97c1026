package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// AdminKey gates the admin stats endpoint. While empty, the endpoint
	// rejects every request.
	AdminKey string

	// RoomTTL is how long an empty room may sit idle before the reaper
	// removes it.
	RoomTTL time.Duration

	// SweepInterval is how often the reaper runs.
	SweepInterval time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		AdminKey:      os.Getenv("ADMIN_KEY"),
		RoomTTL:       getEnvDuration("ROOM_TTL", 10*time.Minute),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 60*time.Second),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
