package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("PLATFORM_FEE_PERCENT", "")
	t.Setenv("RENT_DEFAULT_DAYS", "")
	t.Setenv("RECONCILE_INTERVAL_MINUTES", "")

	cfg := LoadServerConfig()
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, 10, cfg.PlatformFeePercent)
	assert.Equal(t, 30, cfg.RentDefaultDays)
	assert.Equal(t, 5, cfg.ReconcileIntervalMinutes)
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("PLATFORM_FEE_PERCENT", "15")
	t.Setenv("RENT_DEFAULT_DAYS", "14")

	cfg := LoadServerConfig()
	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 15, cfg.PlatformFeePercent)
	assert.Equal(t, 14, cfg.RentDefaultDays)
}

func TestLoadServerConfigRejectsBadValues(t *testing.T) {
	t.Setenv("ENV", "space")
	t.Setenv("PLATFORM_FEE_PERCENT", "150")
	t.Setenv("RENT_DEFAULT_DAYS", "-3")

	cfg := LoadServerConfig()
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 10, cfg.PlatformFeePercent)
	assert.Equal(t, 30, cfg.RentDefaultDays)
}

func TestValidateDevelopment(t *testing.T) {
	cfg := ServerConfig{
		Environment:   EnvDevelopment,
		DatabaseURL:   "postgres://localhost/sellforge",
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}
	assert.NoError(t, cfg.Validate())

	cfg.DatabaseURL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidateProductionRequiresProviders(t *testing.T) {
	cfg := ServerConfig{
		Environment:   EnvProduction,
		DatabaseURL:   "postgres://localhost/sellforge",
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
	assert.Contains(t, err.Error(), "AWS_S3_BUCKET")

	cfg.StripeSecretKey = "sk_live_x"
	cfg.StripeWebhookSecret = "whsec_x"
	cfg.S3Bucket = "sellforge-files"
	assert.NoError(t, cfg.Validate())
}
