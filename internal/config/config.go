package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Lead type names used to resolve per-type upstream destinations.
const (
	LeadTypeFinancing    = "financing-calculator"
	LeadTypeFeedback     = "feedback"
	LeadTypeSpecialOffer = "special-offer"
	LeadTypeContact      = "contact-lead"
)

// Config holds application configuration. It is built once at startup and
// treated as read-only afterwards.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// AllowedOrigins is the parsed ALLOWED_ORIGIN list; empty means permissive.
	AllowedOrigins []string
	SiteURL        string

	TurnstileSecretKey string
	TurnstileVerifyURL string
	TurnstileTimeout   time.Duration

	// Shared upstream pair; takes precedence over every per-type pair.
	LeadEndpointURL   string
	LeadForwardSecret string

	FinancingEndpointURL      string
	FinancingForwardSecret    string
	FeedbackEndpointURL       string
	FeedbackForwardSecret     string
	SpecialOfferEndpointURL   string
	SpecialOfferForwardSecret string

	UpstreamTimeout time.Duration

	MetricsEnabled bool
	OTelStdout     bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AllowedOrigins: ParseOrigins(getEnv("ALLOWED_ORIGIN", "")),
		SiteURL:        strings.TrimSpace(getEnv("NEXT_PUBLIC_SITE_URL", "")),

		TurnstileSecretKey: strings.TrimSpace(getEnv("TURNSTILE_SECRET_KEY", "")),
		TurnstileVerifyURL: getEnv("TURNSTILE_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
		TurnstileTimeout:   getEnvAsDuration("TURNSTILE_TIMEOUT", 10*time.Second),

		LeadEndpointURL:   strings.TrimSpace(getEnv("LEAD_ENDPOINT_URL", "")),
		LeadForwardSecret: strings.TrimSpace(getEnv("LEAD_FORWARD_SECRET", "")),

		FinancingEndpointURL:      strings.TrimSpace(getEnv("FINANCING_LEAD_ENDPOINT_URL", "")),
		FinancingForwardSecret:    strings.TrimSpace(getEnv("FINANCING_LEAD_FORWARD_SECRET", "")),
		FeedbackEndpointURL:       strings.TrimSpace(getEnv("FEEDBACK_ENDPOINT_URL", "")),
		FeedbackForwardSecret:     strings.TrimSpace(getEnv("FEEDBACK_FORWARD_SECRET", "")),
		SpecialOfferEndpointURL:   strings.TrimSpace(getEnv("SPECIAL_OFFER_ENDPOINT_URL", "")),
		SpecialOfferForwardSecret: strings.TrimSpace(getEnv("SPECIAL_OFFER_FORWARD_SECRET", "")),

		UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 7*time.Second),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		OTelStdout:     getEnvAsBool("OTEL_STDOUT", false),
	}
}

// ParseOrigins splits a comma-separated origin list, dropping blanks and
// trailing slashes.
func ParseOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		origin := strings.TrimRight(strings.TrimSpace(part), "/")
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
