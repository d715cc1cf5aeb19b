package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	GeoIPDBPath string

	AgentBaseURL    string
	AgentTimeout    time.Duration
	AgentMaxRetries int
	AgentRetryDelay time.Duration

	QuotaDailyLimit int
	QuotaFailClosed bool

	WorkerCount        int
	WorkerPollInterval time.Duration
	JobDeadline        time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		AgentBaseURL:    getEnv("AGENT_SERVICE_URL", "http://localhost:8000"),
		AgentTimeout:    time.Second * time.Duration(getEnvInt("AGENT_TIMEOUT_SECONDS", 300)),
		AgentMaxRetries: getEnvInt("AGENT_MAX_RETRIES", 3),
		AgentRetryDelay: time.Millisecond * time.Duration(getEnvInt("AGENT_RETRY_DELAY_MS", 1000)),

		QuotaDailyLimit: getEnvInt("QUOTA_DAILY_LIMIT", 10),
		QuotaFailClosed: getEnvBool("QUOTA_FAIL_CLOSED", false),

		WorkerCount:        getEnvInt("WORKER_COUNT", 4),
		WorkerPollInterval: time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		JobDeadline:        time.Minute * time.Duration(getEnvInt("JOB_DEADLINE_MINUTES", 15)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   getEnv("ALLOWED_ORIGINS", "http://localhost:5173"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("WORKER_COUNT must be at least 1")
	}

	if cfg.QuotaDailyLimit < 1 {
		return nil, fmt.Errorf("QUOTA_DAILY_LIMIT must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
