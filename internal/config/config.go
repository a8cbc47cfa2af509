package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	EcoCash  EcoCashConfig
	Poll     PollConfig
	AWS      AWSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AutoMigrate  bool
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// EcoCashConfig holds gateway and provider API configuration.
type EcoCashConfig struct {
	Enabled          bool
	Title            string
	APIKey           string
	Sandbox          bool
	BaseURL          string
	Currency         string
	InitiateTimeout  time.Duration
	LookupTimeout    time.Duration
	CallbackPath     string
	VerifyCallbacks  bool
	WaitingURL       string
	OrderReceivedURL string
	OrderHistoryURL  string
}

// PollConfig holds the confirmation polling cadence handed to clients.
type PollConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxDuration  time.Duration
}

// AWSConfig holds the payment event queue configuration.
// Notifications are only logged when QueueURL is empty.
type AWSConfig struct {
	Region      string
	SQSEndpoint string
	QueueURL    string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 45*time.Second),
			AutoMigrate:  getBoolEnv("DB_AUTO_MIGRATE", false),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ecocash"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ecocash-gateway"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		EcoCash: EcoCashConfig{
			Enabled:          getBoolEnv("ECOCASH_ENABLED", true),
			Title:            getEnv("ECOCASH_TITLE", "EcoCash"),
			APIKey:           getEnv("ECOCASH_API_KEY", ""),
			Sandbox:          getBoolEnv("ECOCASH_SANDBOX", true),
			BaseURL:          getEnv("ECOCASH_BASE_URL", "https://developers.ecocash.co.zw/api/ecocash_pay"),
			Currency:         getEnv("ECOCASH_CURRENCY", "USD"),
			InitiateTimeout:  getDurationEnv("ECOCASH_INITIATE_TIMEOUT", 30*time.Second),
			LookupTimeout:    getDurationEnv("ECOCASH_LOOKUP_TIMEOUT", 20*time.Second),
			CallbackPath:     getEnv("ECOCASH_CALLBACK_PATH", "/v1/payments/ecocash/callback"),
			VerifyCallbacks:  getBoolEnv("ECOCASH_VERIFY_CALLBACKS", true),
			WaitingURL:       getEnv("ECOCASH_WAITING_URL", "/checkout/ecocash-waiting"),
			OrderReceivedURL: getEnv("ECOCASH_ORDER_RECEIVED_URL", "/checkout/order-received"),
			OrderHistoryURL:  getEnv("ECOCASH_ORDER_HISTORY_URL", "/my-account/orders"),
		},
		Poll: PollConfig{
			InitialDelay: getDurationEnv("POLL_INITIAL_DELAY", 2*time.Second),
			Interval:     getDurationEnv("POLL_INTERVAL", 3*time.Second),
			MaxDuration:  getDurationEnv("POLL_MAX_DURATION", 3*time.Minute),
		},
		AWS: AWSConfig{
			Region:      getEnv("AWS_REGION", "us-east-1"),
			SQSEndpoint: getEnv("SQS_ENDPOINT", ""),
			QueueURL:    getEnv("PAYMENT_EVENTS_QUEUE_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
