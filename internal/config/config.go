package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port          string
	PublicBaseURL string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	DataDir      string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Realtime fan-out across processes; empty keeps it in-process.
	RedisURL string

	// Auth
	JWTSecret         string
	TokenTTL          time.Duration
	BootstrapAdmin    string
	BootstrapPassword string

	// Presentation
	Currency      string
	DecimalPlaces int
	Locale        string
	PageSize      int

	// Attachments
	AttachmentBackend string
	UploadDir         string
	GCSBucket         string
	SignedURLTTL      time.Duration
	MaxUploadBytes    int64

	// Google Sheets report publishing (optional)
	GoogleSpreadsheetID   string
	GoogleCredentials     string
	ReportPublishInterval time.Duration

	// Rate limiting on write endpoints
	RateLimitPerMinute int

	// Logging
	LogLevel     string
	LogFormat    string
	LogAddSource bool
}

func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8081"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/estate.db"),
		DataDir:      getEnv("DATA_DIR", "./data"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "estate"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "estate_notifications"),

		RedisURL: getEnv("REDIS_URL", ""),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		TokenTTL:          getEnvDuration("TOKEN_TTL", 12*time.Hour),
		BootstrapAdmin:    getEnv("BOOTSTRAP_ADMIN", ""),
		BootstrapPassword: getEnv("BOOTSTRAP_PASSWORD", ""),

		Currency:      getEnv("CURRENCY", "USD"),
		DecimalPlaces: getEnvInt("DECIMAL_PLACES", 2),
		Locale:        getEnv("LOCALE", "en"),
		PageSize:      getEnvInt("PAGE_SIZE", 20),

		AttachmentBackend: getEnv("ATTACHMENT_BACKEND", "local"),
		UploadDir:         getEnv("UPLOAD_DIR", "./data/uploads"),
		GCSBucket:         getEnv("GCS_BUCKET", ""),
		SignedURLTTL:      getEnvDuration("SIGNED_URL_TTL", 15*time.Minute),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleCredentials:     getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		ReportPublishInterval: getEnvDuration("REPORT_PUBLISH_INTERVAL", time.Hour),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		LogAddSource: getEnvBool("LOG_ADD_SOURCE", false),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil || (parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss") {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': must use redis:// or rediss://", c.RedisURL))
		}
	}

	if len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT secret must be at least 32 characters")
	}
	if c.TokenTTL < time.Minute || c.TokenTTL > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be between 1 minute and 7 days", c.TokenTTL))
	}
	if c.BootstrapAdmin != "" && len(c.BootstrapPassword) < 8 {
		errors = append(errors, "bootstrap password must be at least 8 characters when BOOTSTRAP_ADMIN is set")
	}

	// An unknown currency is not fatal: formatting falls back to USD.
	if c.DecimalPlaces < 0 || c.DecimalPlaces > 4 {
		errors = append(errors, fmt.Sprintf("invalid decimal places %d: must be between 0 and 4", c.DecimalPlaces))
	}
	if c.PageSize < 1 || c.PageSize > 500 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 500", c.PageSize))
	}

	switch c.AttachmentBackend {
	case "local":
		if c.UploadDir == "" {
			errors = append(errors, "upload directory cannot be empty when using local attachments")
		}
	case "gcs":
		if c.GCSBucket == "" {
			errors = append(errors, "GCS bucket is required when using gcs attachments")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid attachment backend '%s': must be one of [local gcs]", c.AttachmentBackend))
	}
	if c.SignedURLTTL < time.Minute || c.SignedURLTTL > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid signed URL TTL %v: must be between 1 minute and 7 days", c.SignedURLTTL))
	}
	if c.MaxUploadBytes <= 0 {
		errors = append(errors, "max upload size must be positive")
	}

	if c.GoogleSpreadsheetID != "" && c.ReportPublishInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid report publish interval %v: must be at least 1 minute", c.ReportPublishInterval))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	if !slices.Contains([]string{"text", "json", "pretty"}, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of [text json pretty]", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
