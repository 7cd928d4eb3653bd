package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration read from the environment.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	LogLevel  string
	LogFormat string

	OtelEnabled       bool
	OTLPEndpoint      string
	OTLPProtocol      string
	OtelSamplingRatio float64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisDB       int
	RedisPassword string

	RateProvider       string
	RateEndpoint       string
	RateTimeout        time.Duration
	RateSourceZone     string
	RateRequestsPerSec float64
	RateBurst          int
	RateUserAgent      string

	RateCacheBackend   string
	RateCacheRetention time.Duration

	BatchSchedule    string
	BatchTimeZone    string
	BatchConcurrency int
	BatchRunOnStart  bool

	PricingConfigDir string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "invoicecalc"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		LogLevel:  strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat: strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),

		OtelEnabled:       getenvBool("OTEL_ENABLED", false),
		OTLPEndpoint:      strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
		OTLPProtocol:      strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
		OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 1),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisDB:       getenvInt("REDIS_DB", 0),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),

		RateProvider:       strings.ToLower(getenv("RATE_PROVIDER", "json")),
		RateEndpoint:       strings.TrimSpace(getenv("RATE_ENDPOINT", "")),
		RateTimeout:        getenvDuration("RATE_TIMEOUT", 30*time.Second),
		RateSourceZone:     getenv("RATE_SOURCE_TIMEZONE", "America/New_York"),
		RateRequestsPerSec: getenvFloat("RATE_REQUESTS_PER_SECOND", 5),
		RateBurst:          getenvInt("RATE_BURST", 1),
		RateUserAgent:      getenv("RATE_USER_AGENT", "invoicecalc"),

		RateCacheBackend:   strings.ToLower(getenv("RATE_CACHE", "memory")),
		RateCacheRetention: getenvDuration("RATE_CACHE_RETENTION", 7*24*time.Hour),

		BatchSchedule:    getenv("BATCH_SCHEDULE", "0 2 * * *"),
		BatchTimeZone:    getenv("BATCH_TIMEZONE", "UTC"),
		BatchConcurrency: getenvInt("BATCH_CONCURRENCY", 4),
		BatchRunOnStart:  getenvBool("BATCH_RUN_ON_START", false),

		PricingConfigDir: strings.TrimSpace(getenv("PRICING_CONFIG_DIR", "")),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
