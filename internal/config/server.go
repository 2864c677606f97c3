// Package config provides configuration management for the Sellforge server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment Environment

	Port           int
	AllowedOrigins []string
	FrontendURL    string

	SessionSecret string
	SessionMaxAge int // seconds

	DatabaseURL string

	StripeSecretKey     string
	StripeWebhookSecret string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string // empty for AWS, set for MinIO and friends
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// PlatformFeePercent is the marketplace's cut of each gross charge.
	PlatformFeePercent int
	// RentDefaultDays is the rental window applied when a product carries
	// no rental period of its own.
	RentDefaultDays int
	// ReconcileIntervalMinutes is how often the fulfillment reconciler
	// sweeps for partially fulfilled purchases.
	ReconcileIntervalMinutes int
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	sessionMaxAge := getEnvInt("SESSION_MAX_AGE", 86400)
	if sessionMaxAge < 0 {
		sessionMaxAge = 86400
	}

	feePercent := getEnvInt("PLATFORM_FEE_PERCENT", 10)
	if feePercent < 0 || feePercent > 100 {
		feePercent = 10
	}

	rentDays := getEnvInt("RENT_DEFAULT_DAYS", 30)
	if rentDays <= 0 {
		rentDays = 30
	}

	return ServerConfig{
		Environment:              env,
		Port:                     getEnvInt("PORT", 8080),
		AllowedOrigins:           splitList(os.Getenv("CORS_ORIGINS")),
		FrontendURL:              getEnvDefault("FRONTEND_URL", "http://localhost:5173"),
		SessionSecret:            os.Getenv("SESSION_SECRET"),
		SessionMaxAge:            sessionMaxAge,
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		StripeSecretKey:          os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:      os.Getenv("STRIPE_WEBHOOK_SECRET"),
		S3Bucket:                 os.Getenv("AWS_S3_BUCKET"),
		S3Region:                 getEnvDefault("AWS_REGION", "us-east-1"),
		S3Endpoint:               os.Getenv("S3_ENDPOINT"),
		S3AccessKey:              os.Getenv("AWS_ACCESS_KEY_ID"),
		S3SecretKey:              os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3UseSSL:                 getEnvBool("S3_USE_SSL", true),
		PlatformFeePercent:       feePercent,
		RentDefaultDays:          rentDays,
		ReconcileIntervalMinutes: getEnvInt("RECONCILE_INTERVAL_MINUTES", 5),
	}
}

// Validate checks that required configuration is present. In production
// every missing value is an error; elsewhere only the database URL and
// session secret are enforced so local tooling can run without provider
// credentials.
func (c ServerConfig) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if c.Environment == EnvProduction {
		if c.StripeSecretKey == "" {
			missing = append(missing, "STRIPE_SECRET_KEY")
		}
		if c.StripeWebhookSecret == "" {
			missing = append(missing, "STRIPE_WEBHOOK_SECRET")
		}
		if c.S3Bucket == "" {
			missing = append(missing, "AWS_S3_BUCKET")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// splitList splits a comma-separated environment value into trimmed entries.
func splitList(val string) []string {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnvDefault reads a string from an environment variable, returning the default if unset.
func getEnvDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
