package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string
	LogLevel   string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Harvest pipeline tunables. The similarity threshold and stabilization
	// rounds are empirical defaults; configurable so they can be tuned
	// without a rebuild.
	WorkerCount         int
	QueueSize           int
	MaxRetries          int
	BackoffBase         time.Duration
	JobTimeout          time.Duration
	StateRetention      time.Duration
	FetchTimeout        time.Duration
	PageLoadTimeout     time.Duration
	RenderBudget        int
	MaxSearchResults    int
	LoadMoreRounds      int
	StableRounds        int
	FormatBatchSize     int
	SimilarityThreshold float64

	NormalizerEndpoint string
	NormalizerModel    string
	NormalizerAPIKey   string
	SearchEndpoint     string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		WorkerCount:         getEnvAsInt("WORKER_COUNT", 4),
		QueueSize:           getEnvAsInt("QUEUE_SIZE", 128),
		MaxRetries:          getEnvAsInt("MAX_RETRIES", 2),
		BackoffBase:         getEnvAsDuration("BACKOFF_BASE_SECONDS", 30),
		JobTimeout:          getEnvAsDuration("JOB_TIMEOUT_SECONDS", 1800),
		StateRetention:      getEnvAsDuration("STATE_RETENTION_SECONDS", 3600),
		FetchTimeout:        getEnvAsDuration("FETCH_TIMEOUT_SECONDS", 10),
		PageLoadTimeout:     getEnvAsDuration("PAGE_LOAD_TIMEOUT_SECONDS", 60),
		RenderBudget:        getEnvAsInt("RENDER_BUDGET", 2),
		MaxSearchResults:    getEnvAsInt("MAX_SEARCH_RESULTS", 5),
		LoadMoreRounds:      getEnvAsInt("LOAD_MORE_ROUNDS", 8),
		StableRounds:        getEnvAsInt("STABLE_ROUNDS", 2),
		FormatBatchSize:     getEnvAsInt("FORMAT_BATCH_SIZE", 10),
		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.90),

		NormalizerEndpoint: getEnv("NORMALIZER_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
		NormalizerModel:    getEnv("NORMALIZER_MODEL", "gpt-4o-mini"),
		NormalizerAPIKey:   getEnv("NORMALIZER_API_KEY", ""),
		SearchEndpoint:     getEnv("SEARCH_ENDPOINT", "https://html.duckduckgo.com/html/"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Second
}
