package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 5, cfg.MaxQuantity)
	assert.Equal(t, 10*time.Minute, cfg.PaymentSessionWindow)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 25, cfg.DBMaxOpenConns)
	assert.Equal(t, 5, cfg.DBMaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.DBConnMaxLifetime)
	assert.Equal(t, 10000, cfg.RateLimitSessions)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PAYMENT_SESSION_WINDOW", "60")
	t.Setenv("CART_MAX_QUANTITY", "8")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("DB_MAX_OPEN_CONNS", "80")
	t.Setenv("DB_CONN_MAX_LIFETIME", "5m")

	cfg := Load()

	assert.Equal(t, 60*time.Second, cfg.PaymentSessionWindow)
	assert.Equal(t, 8, cfg.MaxQuantity)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 80, cfg.DBMaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CART_MAX_QUANTITY", "-2")
	t.Setenv("PAYMENT_SESSION_WINDOW", "soon")

	cfg := Load()

	assert.Equal(t, 5, cfg.MaxQuantity)
	assert.Equal(t, 10*time.Minute, cfg.PaymentSessionWindow)
}
