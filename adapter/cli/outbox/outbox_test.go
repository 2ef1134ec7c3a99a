package outbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	internalApp "github.com/felixgeelhaar/slotwise/internal/app"
	notifDomain "github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/pkg/config"
)

func setupCLI(t *testing.T) *internalApp.Container {
	t.Helper()
	cfg := &config.Config{
		AppEnv:                 "test",
		DatabaseDriver:         "sqlite",
		SQLitePath:             filepath.Join(t.TempDir(), "slotwise.db"),
		BrokerBackend:          "memory",
		ReservationLockBackend: "database",
		ReservationLockTTL:     30 * time.Second,
		DeliveryChannel:        "log",
		OutboxBatchSize:        10,
		OutboxRateLimit:        100,
		OutboxMaxAttempts:      5,
		OutboxLease:            time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	container, err := internalApp.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	cli.SetApp(cli.NewApp(container))
	t.Cleanup(func() { cli.SetApp(nil) })
	return container
}

// failedNotification reserves a slot and drives its notification to failed.
func failedNotification(t *testing.T, c *internalApp.Container) *notifDomain.Notification {
	t.Helper()
	ctx := context.Background()
	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)

	slot, err := c.CreateSlotHandler.Handle(ctx, commands.CreateSlotCommand{
		OwnerID:    7,
		LocationID: 3,
		Start:      start,
		Duration:   30 * time.Minute,
		Timezone:   "UTC",
	})
	require.NoError(t, err)
	_, err = c.ReserveSlotHandler.Handle(ctx, commands.ReserveSlotCommand{SlotID: slot.ID(), CandidateID: 9})
	require.NoError(t, err)

	now := time.Now().UTC()
	claimed, err := c.OutboxRepo.Claim(ctx, "test", 10, time.Minute, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	ok, err := c.OutboxRepo.MarkFailed(ctx, claimed[0].ID(), "test", 5, "mailbox unavailable", now)
	require.NoError(t, err)
	require.True(t, ok)
	return claimed[0]
}

func TestFailedAndRetry(t *testing.T) {
	c := setupCLI(t)
	ctx := context.Background()
	n := failedNotification(t, c)

	var out bytes.Buffer
	failedCmd.SetOut(&out)
	failedCmd.SetContext(ctx)
	require.NoError(t, failedCmd.RunE(failedCmd, nil))
	assert.Contains(t, out.String(), "mailbox unavailable")
	assert.Contains(t, out.String(), string(notifDomain.TypeSlotReserved))

	out.Reset()
	retryCmd.SetOut(&out)
	retryCmd.SetContext(ctx)
	id := fmt.Sprint(n.ID())
	require.NoError(t, retryCmd.RunE(retryCmd, []string{id}))
	assert.Equal(t, fmt.Sprintf("Notification %d re-armed (pending).\n", n.ID()), out.String())

	err := retryCmd.RunE(retryCmd, []string{id})
	assert.ErrorIs(t, err, notifDomain.ErrNotFailed)

	out.Reset()
	require.NoError(t, failedCmd.RunE(failedCmd, nil))
	assert.Equal(t, "No failed notifications.\n", out.String())
}

func TestRetry_InvalidID(t *testing.T) {
	setupCLI(t)
	retryCmd.SetContext(context.Background())

	assert.ErrorContains(t, retryCmd.RunE(retryCmd, []string{"abc"}), "invalid notification id")
	assert.ErrorIs(t, retryCmd.RunE(retryCmd, []string{"404"}), notifDomain.ErrNotificationNotFound)
}

func TestStats(t *testing.T) {
	c := setupCLI(t)
	failedNotification(t, c)

	var out bytes.Buffer
	statsCmd.SetOut(&out)
	statsCmd.SetContext(context.Background())
	require.NoError(t, statsCmd.RunE(statsCmd, nil))
	assert.Equal(t, "pending  0\nsent     0\nfailed   1\n", out.String())
}
