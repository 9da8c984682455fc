package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Conversation state
	StateTTL time.Duration

	// Calendar provider
	GoogleCredentialsFile string
	FreeBusyTimeout       time.Duration
	CommitTimeout         time.Duration

	// Booking defaults, used when a tenant has no explicit settings
	DefaultTimezone        string
	DefaultLanguage        string
	DefaultSlotDurationMin int
	DefaultBufferMin       int
	DefaultMinLeadMin      int

	// Search bounds
	DaypartScanDays  int
	NextDayScanDays  int
	MaxOfferedSlots  int
	SearchWindowSpan time.Duration

	AdminJWTSecret     string
	CORSAllowedOrigins string

	WebhookRatePerSec int
	WebhookBurst      int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		StateTTL: getEnvAsDuration("BOOKING_STATE_TTL", 72*time.Hour),

		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		FreeBusyTimeout:       getEnvAsDuration("FREEBUSY_TIMEOUT", 8*time.Second),
		CommitTimeout:         getEnvAsDuration("BOOKING_COMMIT_TIMEOUT", 8*time.Second),

		DefaultTimezone:        getEnv("DEFAULT_TIMEZONE", "America/New_York"),
		DefaultLanguage:        getEnv("DEFAULT_LANGUAGE", "en"),
		DefaultSlotDurationMin: getEnvAsInt("DEFAULT_SLOT_DURATION_MIN", 45),
		DefaultBufferMin:       getEnvAsInt("DEFAULT_BUFFER_MIN", 15),
		DefaultMinLeadMin:      getEnvAsInt("DEFAULT_MIN_LEAD_MIN", 60),

		DaypartScanDays:  getEnvAsInt("DAYPART_SCAN_DAYS", 14),
		NextDayScanDays:  getEnvAsInt("NEXT_DAY_SCAN_DAYS", 14),
		MaxOfferedSlots:  getEnvAsInt("MAX_OFFERED_SLOTS", 5),
		SearchWindowSpan: getEnvAsDuration("SEARCH_WINDOW_SPAN", 3*time.Hour),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),

		WebhookRatePerSec: getEnvAsInt("WEBHOOK_RATE_PER_SEC", 5),
		WebhookBurst:      getEnvAsInt("WEBHOOK_BURST", 10),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
