package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	// API Configuration
	APIPort        string
	APIHost        string
	APIEnvironment string
	StaticDir      string

	// Ledger database (optional, audit is disabled when empty)
	DatabaseURL          string
	DatabaseMaxOpenConns int
	DatabaseSSLMode      string
	DatabaseSSLRootCert  string

	// Redis (optional, idempotency replay and catalog cache are disabled when empty)
	RedisURL string

	// CORS
	CORSAllowedOrigins []string

	// Rate Limiting
	RateLimitRequestsPerMinute int
	RateLimitBurst             int

	// Stripe
	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string
	StripeCouponID       string

	// Secrets backend for the Stripe and SendGrid keys
	SecretsBackend string
	SecretsPrefix  string
	AWSRegion      string

	// Catalog
	CatalogProducts []string
	CatalogFile     string
	CatalogCacheTTL int // seconds

	// Discount policy
	MinProductsForDiscount int
	DiscountRate           float64

	// Logging
	LogLevel string

	// Sentry
	SentryDSN         string
	SentryEnvironment string

	// Email
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string

	// Features
	FeatureReceiptEmails bool

	// Audit retention
	AuditRetentionDays int
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		// API
		APIPort:        getEnv("API_PORT", "4242"),
		APIHost:        getEnv("API_HOST", "0.0.0.0"),
		APIEnvironment: getEnv("API_ENVIRONMENT", "development"),
		StaticDir:      getEnv("STATIC_DIR", ""),

		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DatabaseMaxOpenConns: getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 10),
		DatabaseSSLMode:      getEnv("DATABASE_SSL_MODE", ""),
		DatabaseSSLRootCert:  getEnv("DATABASE_SSL_ROOT_CERT", ""),
		RedisURL:             getEnv("REDIS_URL", ""),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:4242"}),

		// Rate Limiting
		RateLimitRequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
		RateLimitBurst:             getEnvAsInt("RATE_LIMIT_BURST", 10),

		// Stripe
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
		StripeWebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeCouponID:       getEnv("COUPON_ID", ""),

		SecretsBackend: getEnv("SECRETS_BACKEND", "env"),
		SecretsPrefix:  getEnv("SECRETS_PREFIX", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),

		// Catalog
		CatalogProducts: getEnvAsSlice("CATALOG_PRODUCTS", nil),
		CatalogFile:     getEnv("CATALOG_FILE", ""),
		CatalogCacheTTL: getEnvAsInt("CATALOG_CACHE_TTL_SECONDS", 300),

		// Discount policy
		MinProductsForDiscount: getEnvAsInt("MIN_PRODUCTS_FOR_DISCOUNT", 2),
		DiscountRate:           getEnvAsFloat("DISCOUNT_RATE", 0.2),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Sentry
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "development"),

		// Email
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", "billing@storefront.local"),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Storefront"),

		// Features
		FeatureReceiptEmails: getEnvAsBool("FEATURE_RECEIPT_EMAILS", true),

		AuditRetentionDays: getEnvAsInt("AUDIT_RETENTION_DAYS", 90),
	}
}

// Validate reports configuration that would make checkout unusable.
func (c *Config) Validate() error {
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.StripePublishableKey == "" {
		return fmt.Errorf("STRIPE_PUBLISHABLE_KEY is required")
	}
	if c.CatalogFile == "" && len(c.CatalogProducts) == 0 {
		return fmt.Errorf("either CATALOG_FILE or CATALOG_PRODUCTS must be set")
	}
	if c.MinProductsForDiscount < 1 {
		return fmt.Errorf("MIN_PRODUCTS_FOR_DISCOUNT must be at least 1, got %d", c.MinProductsForDiscount)
	}
	if c.DiscountRate < 0 || c.DiscountRate >= 1 {
		return fmt.Errorf("DISCOUNT_RATE must be in [0,1), got %v", c.DiscountRate)
	}
	if c.DiscountRate > 0 && strings.TrimSpace(c.StripeCouponID) == "" {
		return fmt.Errorf("COUPON_ID is required when DISCOUNT_RATE is %v", c.DiscountRate)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
