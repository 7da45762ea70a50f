// Package config loads server configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port   string
	DBPath string

	// DailyUpdateCron is the cron expression for the grant/expiry job.
	DailyUpdateCron string

	// AllowedOrigins for CORS, comma-free single origin entries.
	AllowedOrigins []string

	// ShutdownTimeoutSec bounds graceful shutdown.
	ShutdownTimeoutSec int
}

// Load initializes configuration from environment variables or defaults.
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DBPath:          getEnv("DB_PATH", "leave.db"),
		DailyUpdateCron: getEnv("DAILY_UPDATE_CRON", "0 2 * * *"),
		AllowedOrigins: []string{
			getEnv("FRONTEND_ORIGIN", "http://localhost:5173"),
			"http://localhost:" + getEnv("PORT", "8080"),
		},
		ShutdownTimeoutSec: getEnvInt("SHUTDOWN_TIMEOUT_SEC", 30),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}
