// Package config defines environment variable keys for configuration.
package config

//nolint:gosec // Environment variable keys are not credentials.
const (
	// Core (Required)
	EnvLineChannelAccessToken = "LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "LINE_CHANNEL_SECRET"

	// Providers
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGroqAPIKey      = "GROQ_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvGoogleSearchKey = "GOOGLE_SEARCH_KEY"
	EnvGoogleSearchCX  = "GOOGLE_CX"

	// Access Control
	EnvAllowedUsers  = "ALLOWED_USERS"
	EnvAllowedGroups = "ALLOWED_GROUPS"

	// Server
	EnvPort            = "PORT"
	EnvBaseURL         = "BASE_URL"
	EnvStaticDir       = "STATIC_DIR"
	EnvLogLevel        = "LOG_LEVEL"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	// Webhook
	EnvWebhookTimeout = "WEBHOOK_TIMEOUT"

	// Rate Limits
	EnvGlobalRateRPS  = "GLOBAL_RATE_RPS"
	EnvChatRateBurst  = "CHAT_RATE_BURST"
	EnvChatRateRefill = "CHAT_RATE_REFILL"
	EnvRateCleanupGap = "RATE_CLEANUP_PERIOD"

	// Delivery
	EnvQuotaNoticeRetries   = "QUOTA_NOTICE_RETRIES"
	EnvQuotaNoticeBaseDelay = "QUOTA_NOTICE_BASE_DELAY"

	// Sentry Feature
	EnvSentryEnabled     = "SENTRY_ENABLED"
	EnvSentryDSN         = "SENTRY_DSN"
	EnvSentryEnvironment = "SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken    = "BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "BETTERSTACK_ENDPOINT"
)
