package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Game settings
	SessionExpiryMinutes int
	MaxSessionsPerIP     int

	// Scenery service (generative backgrounds + chat)
	SceneryBaseURL          string
	SceneryAPIKey           string
	SceneryTimeoutSeconds   int
	SceneryRateLimitSeconds int
	SceneryCacheHours       int

	// Security
	JWTSecret         string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/bintoss?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Game settings
		SessionExpiryMinutes: getEnvInt("SESSION_EXPIRY_MINUTES", 30),
		MaxSessionsPerIP:     getEnvInt("MAX_SESSIONS_PER_IP", 10),

		// Scenery service
		SceneryBaseURL:          getEnv("SCENERY_BASE_URL", ""),
		SceneryAPIKey:           getEnv("SCENERY_API_KEY", ""),
		SceneryTimeoutSeconds:   getEnvInt("SCENERY_TIMEOUT_SECONDS", 30),
		SceneryRateLimitSeconds: getEnvInt("SCENERY_RATE_LIMIT_SECONDS", 10),
		SceneryCacheHours:       getEnvInt("SCENERY_CACHE_HOURS", 24),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
