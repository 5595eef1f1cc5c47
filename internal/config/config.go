package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string
	LogLevel    string

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

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Auth service used to resolve bearer credentials into identities.
	AuthBaseURL string
	AuthAPIKey  string

	Chat   ChatConfig
	Bank   BankConfig
	Places PlacesConfig

	Billing BillingConfig
}

// ChatConfig configures the chat-completion provider.
type ChatConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

// BankConfig configures the bank-data aggregation provider.
type BankConfig struct {
	BaseURL      string
	ClientID     string
	Secret       string
	ClientName   string
	Environment  string
	MaxLinkedIns int
}

// PlacesConfig configures the place-search provider.
type PlacesConfig struct {
	BaseURL string
	APIKey  string
}

// BillingConfig configures the billing provider integration.
type BillingConfig struct {
	BaseURL string
	APIKey  string
	// WebhookSecret verifies signed lifecycle events.
	WebhookSecret string
	// SignupKey authenticates the internal customer-creation hook.
	SignupKey string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "gateway"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		AuthBaseURL: strings.TrimRight(getenv("AUTH_BASE_URL", ""), "/"),
		AuthAPIKey:  strings.TrimSpace(getenv("AUTH_API_KEY", "")),

		Chat: ChatConfig{
			BaseURL:   strings.TrimRight(getenv("CHAT_BASE_URL", "https://api.openai.com/v1"), "/"),
			APIKey:    strings.TrimSpace(getenv("CHAT_API_KEY", "")),
			Model:     getenv("CHAT_MODEL", "gpt-4o-mini"),
			MaxTokens: getenvInt("CHAT_MAX_TOKENS", 2000),
		},
		Bank: BankConfig{
			BaseURL:      strings.TrimRight(getenv("BANK_BASE_URL", "https://sandbox.plaid.com"), "/"),
			ClientID:     strings.TrimSpace(getenv("BANK_CLIENT_ID", "")),
			Secret:       strings.TrimSpace(getenv("BANK_SECRET", "")),
			ClientName:   getenv("BANK_CLIENT_NAME", "Ynter"),
			Environment:  getenv("BANK_ENV", "sandbox"),
			MaxLinkedIns: getenvInt("BANK_MAX_INSTITUTIONS", 5),
		},
		Places: PlacesConfig{
			BaseURL: strings.TrimRight(getenv("PLACES_BASE_URL", "https://places.googleapis.com/v1"), "/"),
			APIKey:  strings.TrimSpace(getenv("PLACES_API_KEY", "")),
		},
		Billing: BillingConfig{
			BaseURL:       strings.TrimRight(getenv("BILLING_BASE_URL", "https://api.stripe.com/v1"), "/"),
			APIKey:        strings.TrimSpace(getenv("BILLING_API_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("BILLING_WEBHOOK_SECRET", "")),
			SignupKey:     strings.TrimSpace(getenv("BILLING_SIGNUP_KEY", "")),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
