package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RabbitMQConfig holds the RabbitMQ connection settings for the review queues.
type RabbitMQConfig struct {
	Host     string
	Port     string
	User     string
	Password string

	Exchange                  string
	ReviewRequestedRoutingKey string
	ReviewCompletedRoutingKey string
	ReviewRequestedQueue      string
	PrefetchCount             int
}

// GetAMQPURL builds the AMQP connection URL from the individual settings.
func (c *RabbitMQConfig) GetAMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

// Config holds all configuration for the event review pipeline service.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// LLM provider selection: "openai" or "gemini"
	LLMProvider string

	// OpenAI configuration
	OpenAIAPIKey string
	OpenAIModel  string

	// Gemini configuration
	GeminiAPIKey string
	GeminiModel  string

	// Image classification service
	ImageScanEndpoint  string
	ImageScanAPIUser   string
	ImageScanAPISecret string
	ImageScanModels    []string

	// SendGrid configuration for host notifications
	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string

	// One deadline applied to a whole review (all external calls included)
	ReviewTimeout time.Duration

	// RabbitMQ configuration
	RabbitMQ RabbitMQConfig

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "everforest"),

		Port: getEnv("PORT", "8080"),

		LLMProvider: getEnv("LLM_PROVIDER", "openai"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		ImageScanEndpoint:  getEnv("IMAGE_SCAN_ENDPOINT", "https://api.sightengine.com/1.0/check.json"),
		ImageScanAPIUser:   getEnv("IMAGE_SCAN_API_USER", ""),
		ImageScanAPISecret: getEnv("IMAGE_SCAN_API_SECRET", ""),
		ImageScanModels: getStringSliceEnv("IMAGE_SCAN_MODELS",
			"nudity-2.1,weapon,alcohol,recreational_drug,medical,offensive,gore-2.0,tobacco,violence,self-harm,gambling,scam,face-attributes"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Everforest"),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "noreply@everforest.io"),

		ReviewTimeout: getDurationEnv("REVIEW_TIMEOUT", 90*time.Second),

		RabbitMQ: RabbitMQConfig{
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnv("RABBITMQ_PORT", "5672"),
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),

			Exchange:                  getEnv("RABBITMQ_EXCHANGE", "everforest-events"),
			ReviewRequestedRoutingKey: getEnv("RABBITMQ_REVIEW_REQUESTED_ROUTING_KEY", "event.review.requested"),
			ReviewCompletedRoutingKey: getEnv("RABBITMQ_REVIEW_COMPLETED_ROUTING_KEY", "event.review.completed"),
			ReviewRequestedQueue:      getEnv("RABBITMQ_REVIEW_REQUESTED_QUEUE", "event-review-requested"),
			PrefetchCount:             getIntEnv("RABBITMQ_PREFETCH_COUNT", 4),
		},

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getStringSliceEnv gets a comma-separated environment variable as a string slice
func getStringSliceEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
