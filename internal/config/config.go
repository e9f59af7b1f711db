package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	CatalogPath    string
	UseMemoryQueue bool

	// Redis transcript cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// WhatsApp gateway (external bridge process)
	WhatsAppGatewayURL   string
	WhatsAppGatewayToken string
	WhatsAppWebhookToken string

	// Scheduling backend
	SquareBaseURL     string
	SquareAccessToken string

	// NLU extraction
	NLUTimeout     time.Duration
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string

	// AWS (Bedrock, SQS, SES)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	InboundQueueURL     string

	// Booking commit
	BookingMaxAttempts int
	BookingRetryDelay  time.Duration

	// Ops notifications
	EmailProvider    string
	SendGridAPIKey   string
	NotifyFromEmail  string
	NotifyFromName   string
	NotifySalonEmail string

	AdminJWTSecret string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CatalogPath:    getEnv("CATALOG_PATH", "catalog.json"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WhatsAppGatewayURL:   getEnv("WHATSAPP_GATEWAY_URL", ""),
		WhatsAppGatewayToken: getEnv("WHATSAPP_GATEWAY_TOKEN", ""),
		WhatsAppWebhookToken: getEnv("WHATSAPP_WEBHOOK_TOKEN", ""),

		SquareBaseURL:     getEnv("SQUARE_BASE_URL", "https://connect.squareup.com"),
		SquareAccessToken: getEnv("SQUARE_ACCESS_TOKEN", ""),

		NLUTimeout:     getEnvAsDuration("NLU_TIMEOUT", 8*time.Second),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		AWSRegion:           getEnv("AWS_REGION", "eu-west-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		InboundQueueURL:     getEnv("INBOUND_QUEUE_URL", ""),

		BookingMaxAttempts: getEnvAsInt("BOOKING_MAX_ATTEMPTS", 3),
		BookingRetryDelay:  getEnvAsDuration("BOOKING_RETRY_DELAY", 2*time.Second),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		NotifyFromEmail:  getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:   getEnv("NOTIFY_FROM_NAME", "CitaBot"),
		NotifySalonEmail: getEnv("NOTIFY_SALON_EMAIL", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
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
