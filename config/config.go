package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime setting, built once at startup from the
// environment and passed by reference. Nothing inside the core reads
// environment variables directly.
type Config struct {
	DatabaseURL  string
	ProductsPath string

	Host string
	Port string

	ScanIntervalHours int
	ScanConcurrency   int
	FetchTimeout      time.Duration
	DedupWindow       time.Duration

	DefaultCurrency         string
	ForceCurrencyConversion bool

	RateLimitPerSecond float64
	AllowedOrigins     []string

	TelegramBotToken string
	TelegramChatID   int64

	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	EmailFromName   string
	EmailRecipients []string
}

// Load builds the configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		ProductsPath: getEnv("PRODUCTS_CONFIG", "config/products.yaml"),

		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "8080"),

		ScanIntervalHours: getEnvInt("SCAN_INTERVAL_HOURS", 12),
		ScanConcurrency:   getEnvInt("SCAN_CONCURRENCY", 4),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		DedupWindow:       time.Duration(getEnvInt("DEDUP_WINDOW_HOURS", 12)) * time.Hour,

		DefaultCurrency:         getEnv("DEFAULT_CURRENCY", "CAD"),
		ForceCurrencyConversion: getEnvBool("FORCE_CURRENCY_CONVERSION", true),

		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 5),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),

		SMTPHost:        getEnv("EMAIL_SMTP_SERVER", "smtp.gmail.com"),
		SMTPPort:        getEnvInt("EMAIL_SMTP_PORT", 587),
		SMTPUsername:    os.Getenv("EMAIL_USERNAME"),
		SMTPPassword:    os.Getenv("EMAIL_PASSWORD"),
		EmailFromName:   getEnv("EMAIL_FROM_NAME", "Price Tracker"),
		EmailRecipients: splitList(os.Getenv("EMAIL_RECIPIENTS")),
	}

	return cfg, nil
}

// TelegramEnabled reports whether telegram delivery is fully configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// EmailEnabled reports whether SMTP delivery is fully configured.
func (c *Config) EmailEnabled() bool {
	return c.SMTPUsername != "" && c.SMTPPassword != "" && len(c.EmailRecipients) > 0
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
