package infrastructure

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBDriver string // "mysql", "postgres" or "sqlite"
	DBDSN    string

	GeminiAPIKey      string
	GeminiModel       string
	GeminiBaseURL     string
	GeminiTemperature float64
	GeminiMaxTokens   int
	GeminiTimeout     time.Duration

	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
	RedisURL             string

	RabbitMQURL    string
	EventsExchange string

	SessionSecret string
	SecureCookies bool

	UploadDir   string
	S3Bucket    string
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	UnidocLicenseKey string

	LogLevel  string
	LogFormat string
}

// LoadConfig reads .env (if present) and the environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                 envStr("PORT", "8080"),
		DBDriver:             envStr("DB_DRIVER", "mysql"),
		DBDSN:                envStr("DB_DSN", ""),
		GeminiAPIKey:         envStr("GEMINI_API_KEY", ""),
		GeminiModel:          envStr("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:        envStr("GEMINI_BASE_URL", DefaultGeminiBaseURL),
		GeminiTemperature:    envFloat("GEMINI_TEMPERATURE", 0.3),
		GeminiMaxTokens:      envInt("GEMINI_MAX_TOKENS", 2048),
		GeminiTimeout:        envDuration("GEMINI_TIMEOUT", 60*time.Second),
		CacheTTL:             envDuration("CACHE_TTL", 24*time.Hour),
		CacheCleanupInterval: envDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		RedisURL:             envStr("REDIS_URL", ""),
		RabbitMQURL:          envStr("RABBITMQ_URL", ""),
		EventsExchange:       envStr("EVENTS_EXCHANGE", "candidate_events"),
		SessionSecret:        envStr("SESSION_SECRET", ""),
		SecureCookies:        envBool("SESSION_SECURE", false),
		UploadDir:            envStr("UPLOAD_DIR", "var/uploads/cv"),
		S3Bucket:             envStr("S3_BUCKET", ""),
		S3Endpoint:           envStr("S3_ENDPOINT", ""),
		S3Region:             envStr("S3_REGION", "auto"),
		S3AccessKey:          envStr("S3_ACCESS_KEY", ""),
		S3SecretKey:          envStr("S3_SECRET_KEY", ""),
		UnidocLicenseKey:     envStr("UNIDOC_LICENSE_API_KEY", ""),
		LogLevel:             envStr("LOG_LEVEL", "info"),
		LogFormat:            envStr("LOG_FORMAT", "text"),
	}
}

// Validate reports the settings the server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	return nil
}

func (c *Config) UseS3() bool {
	return c.S3Bucket != ""
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(envStr(key, ""))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(envStr(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(envStr(key, ""))
	if err != nil {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(envStr(key, ""))
	if err != nil {
		return def
	}
	return v
}
