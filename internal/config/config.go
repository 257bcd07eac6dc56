// Package config loads process configuration from the environment,
// following the teacher's env-first, godotenv-assisted pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration, threaded explicitly as a
// parameter rather than kept as package-level state.
type Config struct {
	// HTTP server
	Port string

	// GitHub App
	GitHubAppID         int64
	GitHubPrivateKey    []byte
	GitHubWebhookSecret string

	// Model API
	ModelAPIKey string
	ModelName   string

	// Database / queue
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	AsynqQueue       string
	AsynqConcurrency int
	AsynqMaxRetry    int

	// Gate
	MaxReviewsPerRepoPerHour int

	// Agent loop
	MaxDiffSize      int
	ModelTokenBudget int

	// Sandbox
	SandboxBaseDir string

	// Admin
	AdminAPIKey string

	// Cron
	StaleJobTimeout time.Duration
}

// Load reads configuration from environment variables and an optional
// .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:                     getEnvOrDefault("PORT", "8080"),
		ModelName:                getEnvOrDefault("MODEL_NAME", "claude-sonnet-4-5"),
		RedisAddr:                getEnvOrDefault("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getEnvIntOrDefault("REDIS_DB", 0),
		AsynqQueue:               getEnvOrDefault("ASYNQ_QUEUE", "reviews"),
		AsynqConcurrency:         getEnvIntOrDefault("ASYNQ_CONCURRENCY", 5),
		AsynqMaxRetry:            getEnvIntOrDefault("ASYNQ_MAX_RETRY", 3),
		MaxReviewsPerRepoPerHour: getEnvIntOrDefault("MAX_REVIEWS_PER_REPO_PER_HOUR", 50),
		MaxDiffSize:              getEnvIntOrDefault("MAX_DIFF_SIZE", 100000),
		ModelTokenBudget:         getEnvIntOrDefault("MODEL_TOKEN_BUDGET", 16384),
		SandboxBaseDir:           getEnvOrDefault("SANDBOX_BASE_DIR", "/var/lib/reviewbot/sandboxes"),
		AdminAPIKey:              os.Getenv("ADMIN_API_KEY"),
		StaleJobTimeout:          getEnvDurationOrDefault("STALE_JOB_TIMEOUT", 30*time.Minute),
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	appID, err := strconv.ParseInt(os.Getenv("GITHUB_APP_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
	}
	cfg.GitHubAppID = appID

	privateKeyPath := getEnvOrDefault("GITHUB_PRIVATE_KEY_PATH", "/app/private-key.pem")
	privateKey, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read GitHub private key from %s: %w", privateKeyPath, err)
	}
	cfg.GitHubPrivateKey = privateKey

	cfg.GitHubWebhookSecret = os.Getenv("GITHUB_WEBHOOK_SECRET")
	if cfg.GitHubWebhookSecret == "" {
		return nil, fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}

	cfg.ModelAPIKey = os.Getenv("MODEL_API_KEY")
	if cfg.ModelAPIKey == "" {
		return nil, fmt.Errorf("MODEL_API_KEY is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
