package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	notifDomain "github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/lock"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/broker"
	"github.com/felixgeelhaar/slotwise/pkg/config"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:                  "test",
		DatabaseDriver:          "sqlite",
		SQLitePath:              filepath.Join(t.TempDir(), "slotwise.db"),
		BrokerBackend:           "memory",
		ReservationLockBackend:  "database",
		ReservationLockTTL:      30 * time.Second,
		AvailabilityCacheTTL:    30 * time.Second,
		DeliveryChannel:         "log",
		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      30 * time.Second,
		OutboxPollInterval:      time.Second,
		OutboxBatchSize:         10,
		OutboxRateLimit:         100,
		OutboxWorkerConcurrency: 2,
		OutboxMaxAttempts:       5,
		OutboxRetryBaseDelay:    time.Second,
		OutboxRetryMaxDelay:     time.Minute,
		OutboxLease:             time.Minute,
	}
}

func newTestContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewContainer_LocalMode(t *testing.T) {
	c := newTestContainer(t, localConfig(t))

	assert.NotNil(t, c.DBConn)
	assert.Nil(t, c.RedisClient)
	assert.Nil(t, c.AvailabilityCache, "no cache without redis")
	assert.IsType(t, &broker.MemoryBroker{}, c.Broker)
	assert.Same(t, c.DBLockRepo, c.ReservationLock)
	assert.Equal(t, "closed", c.Channel.State())

	health := c.Health.Check(context.Background())
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
}

// A reservation made through the wired handlers is delivered by the wired
// dispatcher.
func TestContainer_ReserveAndDispatch(t *testing.T) {
	c := newTestContainer(t, localConfig(t))
	ctx := context.Background()
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)

	slot, err := c.CreateSlotHandler.Handle(ctx, commands.CreateSlotCommand{
		OwnerID:    7,
		LocationID: 3,
		Start:      start,
		Duration:   45 * time.Minute,
		Timezone:   "Europe/Berlin",
	})
	require.NoError(t, err)

	views, err := c.ListAvailableSlotsHandler.Handle(ctx, queries.ListAvailableSlotsQuery{
		OwnerID: 7, From: start.Add(-time.Hour), To: start.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, views, 1)

	res, err := c.ReserveSlotHandler.Handle(ctx, commands.ReserveSlotCommand{SlotID: slot.ID(), CandidateID: 9})
	require.NoError(t, err)
	require.Equal(t, domain.ReserveReserved, res.Outcome)

	processed, err := c.Dispatcher.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	n, err := c.OutboxRepo.FindByKey(ctx, notifDomain.Key{Type: notifDomain.TypeSlotReserved, SubjectID: slot.ID(), CandidateID: 9})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, notifDomain.StatusSent, n.Status())

	stats, err := c.Operator.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[notifDomain.StatusSent])
}

func TestNewContainer_RedisBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := localConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.BrokerBackend = "redis"
	cfg.ReservationLockBackend = "redis"

	c := newTestContainer(t, cfg)

	require.NotNil(t, c.RedisClient)
	assert.NotNil(t, c.AvailabilityCache)
	assert.IsType(t, &broker.RedisStreamBroker{}, c.Broker)
	assert.IsType(t, &lock.RedisLock{}, c.ReservationLock)

	health := c.Health.Check(context.Background())
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
	assert.Len(t, health.Checks, 2)
}

func TestNewContainer_UnreachableRedis(t *testing.T) {
	cfg := localConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1"

	_, err := NewContainer(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis")
}

func TestContainer_InitIsIdempotent(t *testing.T) {
	c := New(localConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	require.NoError(t, c.Init(ctx))
	t.Cleanup(c.Close)

	dispatcher, conn := c.Dispatcher, c.DBConn
	require.NoError(t, c.Init(ctx))
	assert.Same(t, dispatcher, c.Dispatcher)
	assert.Equal(t, conn, c.DBConn)
}
