package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 10, cfg.PlatformFeePercent)
	assert.Equal(t, int64(10_000_000), cfg.Fraud.PriceCeiling)
	assert.Equal(t, 72*time.Hour, cfg.AutoAcceptAfter)
	assert.Equal(t, "USD", cfg.Currency)
	assert.False(t, cfg.FraudBlockHigh)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.NotEmpty(t, cfg.FingerprintSecret)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PLATFORM_FEE_PERCENT", "15")
	t.Setenv("PRICE_CEILING", "1_000_000")
	t.Setenv("FRAUD_BLOCK_HIGH", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CURRENCY", "eur")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.PlatformFeePercent)
	assert.Equal(t, int64(1_000_000), cfg.Fraud.PriceCeiling)
	assert.True(t, cfg.FraudBlockHigh)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "EUR", cfg.Currency)
}

func TestLoad_ProductionGuards(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("FINGERPRINT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://gigs.example.com")
	_, err = Load()
	assert.NoError(t, err)

	t.Setenv("STORE_DRIVER", "memory")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownDriverAndFee(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "mongo")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PLATFORM_FEE_PERCENT", "120")
	_, err = Load()
	assert.Error(t, err)
}
