// Package config loads application configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis (preferences cache)
	RedisURL      string
	PrefsCacheTTL time.Duration

	// RabbitMQ (artifact posting)
	RabbitMQURL      string
	ArtifactExchange string

	// External alternative generator
	GeneratorURL     string
	GeneratorAPIKey  string
	GeneratorTimeout time.Duration

	// Schedule monitor
	NudgeInterval     time.Duration
	SweepInterval     time.Duration
	SweepLookaheadDays int

	// Worker
	WorkerHealthAddr string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", "tutorloop.db"),

		RedisURL:      getEnv("REDIS_URL", ""),
		PrefsCacheTTL: getDurationEnv("PREFS_CACHE_TTL", 10*time.Minute),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		ArtifactExchange: getEnv("ARTIFACT_EXCHANGE", "tutorloop.artifacts"),

		GeneratorURL:     getEnv("GENERATOR_URL", ""),
		GeneratorAPIKey:  getEnv("GENERATOR_API_KEY", ""),
		GeneratorTimeout: getDurationEnv("GENERATOR_TIMEOUT", 8*time.Second),

		NudgeInterval:      getDurationEnv("NUDGE_INTERVAL", time.Hour),
		SweepInterval:      getDurationEnv("SWEEP_INTERVAL", 24*time.Hour),
		SweepLookaheadDays: getIntEnv("SWEEP_LOOKAHEAD_DAYS", 14),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", ""),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
