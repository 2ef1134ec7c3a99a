package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"APP_ENV", "LOG_LEVEL", "LOG_FORMAT",
	"DATABASE_URL", "DATABASE_DRIVER", "SQLITE_PATH", "DATABASE_MAX_CONNS",
	"REDIS_URL", "RABBITMQ_URL", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"BROKER_BACKEND", "RESERVATION_LOCK_BACKEND", "RESERVATION_LOCK_TTL",
	"AVAILABILITY_CACHE_TTL",
	"DELIVERY_CHANNEL", "BREAKER_FAILURE_THRESHOLD", "BREAKER_OPEN_TIMEOUT",
	"OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "OUTBOX_RATE_LIMIT",
	"OUTBOX_WORKER_CONCURRENCY", "OUTBOX_MAX_ATTEMPTS",
	"OUTBOX_RETRY_BASE_DELAY", "OUTBOX_RETRY_MAX_DELAY", "OUTBOX_LEASE", "OUTBOX_STATS_INTERVAL",
	"HTTP_ADDR", "HTTP_RATE_LIMIT", "WORKER_HEALTH_ADDR", "SLOT_RETENTION",
}

// clearEnv blanks every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.DatabaseDriver)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "memory", cfg.BrokerBackend)
	assert.Equal(t, "database", cfg.ReservationLockBackend)
	assert.Equal(t, 30*time.Second, cfg.ReservationLockTTL)
	assert.Equal(t, "log", cfg.DeliveryChannel)
	assert.Equal(t, 5, cfg.OutboxMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.OutboxRetryBaseDelay)
	assert.Equal(t, 10*time.Minute, cfg.OutboxRetryMaxDelay)
	assert.Equal(t, float64(20), cfg.OutboxRateLimit)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
	assert.Equal(t, "0.0.0.0:8081", cfg.WorkerHealthAddr)
	assert.Equal(t, 7*24*time.Hour, cfg.SlotRetention)
	assert.Nil(t, cfg.KafkaBrokers)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://slotwise:secret@db:5432/slotwise")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("BROKER_BACKEND", "redis")
	t.Setenv("RESERVATION_LOCK_BACKEND", "redis")
	t.Setenv("DELIVERY_CHANNEL", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("OUTBOX_BATCH_SIZE", "10")
	t.Setenv("OUTBOX_RATE_LIMIT", "2.5")
	t.Setenv("OUTBOX_LEASE", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "redis", cfg.BrokerBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 10, cfg.OutboxBatchSize)
	assert.Equal(t, 2.5, cfg.OutboxRateLimit)
	assert.Equal(t, 90*time.Second, cfg.OutboxLease)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("OUTBOX_BATCH_SIZE", "lots")
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.OutboxBatchSize)
	assert.Equal(t, time.Second, cfg.OutboxPollInterval)
}

func TestLoad_RejectsInconsistentBackends(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown broker", map[string]string{"BROKER_BACKEND": "sqs"}, "BROKER_BACKEND"},
		{"redis broker without redis", map[string]string{"BROKER_BACKEND": "redis"}, "REDIS_URL"},
		{"redis lock without redis", map[string]string{"RESERVATION_LOCK_BACKEND": "redis"}, "REDIS_URL"},
		{"unknown lock", map[string]string{"RESERVATION_LOCK_BACKEND": "zookeeper"}, "RESERVATION_LOCK_BACKEND"},
		{"kafka without brokers", map[string]string{"DELIVERY_CHANNEL": "kafka"}, "KAFKA_BROKERS"},
		{"unknown channel", map[string]string{"DELIVERY_CHANNEL": "sms"}, "DELIVERY_CHANNEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
