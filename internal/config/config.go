// Package config provides application configuration management.
// It loads settings from environment variables (with optional .env file)
// and provides defaults for server, delivery, and provider settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// LINE Bot Configuration
	LineChannelToken  string
	LineChannelSecret string

	// Provider Configuration
	OpenAIAPIKey    string // OpenAI API key (chat, image generation, Whisper)
	GroqAPIKey      string // Groq API key (Groq-hosted chat models)
	GeminiAPIKey    string // Gemini API key ("google" translation method)
	GoogleSearchKey string // Google Custom Search API key
	GoogleSearchCX  string // Google Custom Search engine ID

	// Access Control (empty slices = allow everyone)
	AllowedUsers  []string
	AllowedGroups []string

	// Server Configuration
	Port            string
	BaseURL         string // Public base URL for static assets (menu card images)
	StaticDir       string // Local directory served at /static
	LogLevel        string
	ShutdownTimeout time.Duration

	// Sentry Configuration
	SentryEnabled     bool
	SentryDSN         string
	SentryEnvironment string
	SentrySampleRate  float64

	// Better Stack log shipping
	BetterStackToken    string
	BetterStackEndpoint string

	// Bot Configuration (embedded)
	Bot BotConfig
}

// BotConfig holds bot-specific configuration
type BotConfig struct {
	// Timeouts
	WebhookTimeout time.Duration // Timeout for per-event bot processing

	// Rate Limits (Token Bucket Algorithm)
	GlobalRateRPS         float64 // Global LINE API rate limit in requests per second
	ChatRateLimitBurst    float64 // Maximum burst tokens per chat
	ChatRateLimitPerSec   float64 // Tokens refilled per second per chat
	RateLimiterCleanupGap time.Duration // Cleanup period for idle per-chat buckets

	// Quota-notice retry (push of the "usage limit reached" message)
	QuotaNoticeRetries   int           // Retry attempts (default: 3)
	QuotaNoticeBaseDelay time.Duration // Base delay, doubled each attempt (default: 1s)

	// LINE API Constraints
	MaxMessagesPerReply int // Maximum messages per reply (LINE API limit: 5)
	MaxEventsPerWebhook int // Maximum events per webhook batch
	MinReplyTokenLength int // Minimum reply token length
	MaxMessageLength    int // Maximum inbound message length accepted
	MaxPostbackDataSize int // Maximum postback data size (LINE API limit: 300)
}

// Load reads configuration from environment variables.
// It attempts to load a .env file first, then reads from env vars.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),

		OpenAIAPIKey:    getEnv(EnvOpenAIAPIKey, ""),
		GroqAPIKey:      getEnv(EnvGroqAPIKey, ""),
		GeminiAPIKey:    getEnv(EnvGeminiAPIKey, ""),
		GoogleSearchKey: getEnv(EnvGoogleSearchKey, ""),
		GoogleSearchCX:  getEnv(EnvGoogleSearchCX, ""),

		AllowedUsers:  splitList(getEnv(EnvAllowedUsers, "")),
		AllowedGroups: splitList(getEnv(EnvAllowedGroups, "")),

		Port:            getEnv(EnvPort, "5000"),
		BaseURL:         strings.TrimRight(getEnv(EnvBaseURL, ""), "/"),
		StaticDir:       getEnv(EnvStaticDir, "static"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, 30*time.Second),

		SentryEnabled:     getBoolEnv(EnvSentryEnabled, false),
		SentryDSN:         getEnv(EnvSentryDSN, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		Bot: BotConfig{
			WebhookTimeout:        getDurationEnv(EnvWebhookTimeout, 55*time.Second),
			GlobalRateRPS:         getFloatEnv(EnvGlobalRateRPS, 100),
			ChatRateLimitBurst:    getFloatEnv(EnvChatRateBurst, 15),
			ChatRateLimitPerSec:   getFloatEnv(EnvChatRateRefill, 0.2),
			RateLimiterCleanupGap: getDurationEnv(EnvRateCleanupGap, 5*time.Minute),
			QuotaNoticeRetries:    getIntEnv(EnvQuotaNoticeRetries, 3),
			QuotaNoticeBaseDelay:  getDurationEnv(EnvQuotaNoticeBaseDelay, time.Second),
			MaxMessagesPerReply:   5,
			MaxEventsPerWebhook:   100,
			MinReplyTokenLength:   10,
			MaxMessageLength:      20000,
			MaxPostbackDataSize:   300,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	var errs []error

	if c.LineChannelToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelAccessToken))
	}
	if c.LineChannelSecret == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelSecret))
	}
	if c.SentryEnabled && c.SentryDSN == "" {
		errs = append(errs, fmt.Errorf("%s is required when Sentry is enabled", EnvSentryDSN))
	}
	if c.Bot.QuotaNoticeRetries < 0 {
		errs = append(errs, errors.New("quota notice retries must be >= 0"))
	}
	if c.Bot.GlobalRateRPS <= 0 {
		errs = append(errs, errors.New("global rate RPS must be > 0"))
	}

	return errors.Join(errs...)
}

// SearchEnabled reports whether the Google Custom Search credentials are set.
func (c *Config) SearchEnabled() bool {
	return c.GoogleSearchKey != "" && c.GoogleSearchCX != ""
}

// IsUserAllowed reports whether a user may use AI features.
// An empty allow-list permits everyone.
func (c *Config) IsUserAllowed(userID string) bool {
	return allowed(c.AllowedUsers, userID)
}

// IsGroupAllowed reports whether a group may use AI features.
// An empty allow-list permits everyone.
func (c *Config) IsGroupAllowed(groupID string) bool {
	return allowed(c.AllowedGroups, groupID)
}

func allowed(list []string, id string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// splitList parses a comma-separated env value into a trimmed slice.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv returns the environment variable as a duration or a default
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getFloatEnv returns the environment variable as a float64 or a default
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getIntEnv returns the environment variable as an int or a default
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getBoolEnv returns the environment variable as a bool or a default
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
