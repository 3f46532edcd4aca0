package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app_name: hotel-test\n"))
	require.NoError(t, err)

	assert.Equal(t, "hotel-test", cfg.AppName)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Pricing.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.Pricing.QuoteValidity)
	assert.Equal(t, "PERCENTAGE", cfg.Booking.Deposit.Type)
	assert.Equal(t, 48, cfg.Booking.Cancellation.HoursBeforeCheckIn)
	assert.Equal(t, 8, cfg.Refunds.MaxAttempts)
}

func TestLoadReadsNestedValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
storage:
  driver: postgres
postgres:
  dsn: postgres://hotel@localhost/hotel
pricing:
  cache_ttl: 90s
booking:
  deposit:
    type: FIRST_NIGHT
    minimum: 75
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 90*time.Second, cfg.Pricing.CacheTTL)
	assert.Equal(t, "FIRST_NIGHT", cfg.Booking.Deposit.Type)
	assert.Equal(t, 75.0, cfg.Booking.Deposit.Minimum)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("BILLING_PROVIDER", "stripe")
	t.Setenv("BILLING_STRIPE_SECRET", "sk_test_123")

	cfg, err := Load(writeConfig(t, "billing:\n  provider: mock\n"))
	require.NoError(t, err)
	assert.Equal(t, "stripe", cfg.Billing.Provider)
	assert.Equal(t, "sk_test_123", cfg.Billing.StripeSecret)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"postgres without dsn", "storage:\n  driver: postgres\n"},
		{"unknown storage", "storage:\n  driver: sqlite\n"},
		{"stripe without secret", "billing:\n  provider: stripe\n"},
		{"unknown deposit type", "booking:\n  deposit:\n    type: HALF\n"},
		{"refund percentage above 100", "booking:\n  cancellation:\n    refund_percentage: 150\n"},
		{"cache outlives quotes", "pricing:\n  cache_ttl: 30m\n  quote_validity: 15m\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
