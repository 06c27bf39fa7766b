// Package config loads gateway settings from the environment, with a .env
// file picked up in development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port string
	Env  string

	DatabasePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	VaultKey  string

	ExchangeABaseURL string
	ExchangeBBaseURL string

	WorkerConcurrency int
	QueueMaxAttempts  int

	PollInterval  time.Duration
	PollBatchSize int
	LockTTL       time.Duration

	BreakerResetTimeout time.Duration
	CallTimeout         time.Duration
}

// Load reads configuration from the environment. Missing values fall back to
// development defaults; production deployments set everything explicitly.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		DatabasePath: getEnv("DATABASE_PATH", "gateway.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "dev-only-secret"),
		VaultKey:  getEnv("VAULT_KEY", ""),

		ExchangeABaseURL: getEnv("EXCHANGE_A_BASE_URL", "https://gateway.exchange-a.test"),
		ExchangeBBaseURL: getEnv("EXCHANGE_B_BASE_URL", "https://api.exchange-b.test"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		QueueMaxAttempts:  getEnvInt("QUEUE_MAX_ATTEMPTS", 3),

		PollInterval:  getEnvDuration("POLL_INTERVAL", time.Minute),
		PollBatchSize: getEnvInt("POLL_BATCH_SIZE", 50),
		LockTTL:       getEnvDuration("LOCK_TTL", 2*time.Minute),

		BreakerResetTimeout: getEnvDuration("BREAKER_RESET_TIMEOUT", time.Minute),
		CallTimeout:         getEnvDuration("CALL_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer in environment, using default")
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration in environment, using default")
	}
	return fallback
}
