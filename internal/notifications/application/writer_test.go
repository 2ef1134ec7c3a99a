package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/notifications/application"
	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/notifications/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/dbtest"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

var now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	repo   *persistence.OutboxRepository
	uow    *database.UnitOfWork
	clock  *sharedDomain.ManualClock
	writer *application.Writer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	f := &fixture{
		repo:  persistence.NewOutboxRepository(conn),
		uow:   database.NewUnitOfWork(conn),
		clock: sharedDomain.NewManualClock(now),
	}
	f.writer = application.NewWriter(f.repo, f.uow, f.clock, nil)
	return f
}

func reservedRequest(slotID int64, payload map[string]any) application.EnqueueRequest {
	return application.EnqueueRequest{
		Type:        domain.TypeSlotReserved,
		SubjectID:   slotID,
		CandidateID: 9,
		RecruiterID: 7,
		Payload:     payload,
	}
}

func TestWriter_CoalescesWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := observability.WithCorrelationID(context.Background(), "corr-1")

	first, err := f.writer.Enqueue(ctx, reservedRequest(1, map[string]any{"start": "10:00"}))
	require.NoError(t, err)
	assert.Equal(t, "corr-1", first.CorrelationID())

	f.clock.Advance(time.Minute)
	ctx = observability.WithCorrelationID(context.Background(), "corr-2")
	second, err := f.writer.Enqueue(ctx, reservedRequest(1, map[string]any{"start": "11:00"}))
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID(), "one row per key")
	assert.Equal(t, domain.StatusPending, second.Status())

	stored, err := f.repo.FindByID(context.Background(), first.ID())
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"11:00"}`, string(stored.Payload()))
	assert.Equal(t, "corr-2", stored.CorrelationID())

	counts, err := f.repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.StatusPending])
}

func TestWriter_DoesNotResurrectSentNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.writer.Enqueue(ctx, reservedRequest(1, map[string]any{"v": 1}))
	require.NoError(t, err)
	ok, err := f.repo.MarkSent(ctx, n.ID(), "", now)
	require.NoError(t, err)
	require.True(t, ok)

	again, err := f.writer.Enqueue(ctx, reservedRequest(1, map[string]any{"v": 2}))
	require.NoError(t, err)
	assert.Equal(t, n.ID(), again.ID())
	assert.Equal(t, domain.StatusSent, again.Status())
	assert.JSONEq(t, `{"v":1}`, string(again.Payload()))

	claimed, err := f.repo.Claim(ctx, "w1", 10, time.Minute, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestWriter_LeavesFailedNotificationToOperator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.writer.Enqueue(ctx, reservedRequest(1, nil))
	require.NoError(t, err)
	ok, err := f.repo.MarkFailed(ctx, n.ID(), "", 5, "bad recipient", now)
	require.NoError(t, err)
	require.True(t, ok)

	again, err := f.writer.Enqueue(ctx, reservedRequest(1, map[string]any{"v": 2}))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, again.Status())

	op := application.NewOperator(f.repo, f.clock, nil)
	failed, err := op.ListFailed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	f.clock.Advance(time.Hour)
	rearmed, err := op.RetryFailed(ctx, n.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, rearmed.Status())
	assert.Zero(t, rearmed.Attempts())
	require.NotNil(t, rearmed.NextRetryAt())
	assert.True(t, f.clock.Now().Equal(*rearmed.NextRetryAt()))

	_, err = op.RetryFailed(ctx, n.ID())
	assert.ErrorIs(t, err, domain.ErrNotFailed)

	_, err = op.RetryFailed(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}

func TestWriter_RollsBackWithCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("state change failed")

	err := sharedApplication.WithUnitOfWork(ctx, f.uow, func(txCtx context.Context) error {
		_, err := f.writer.Enqueue(txCtx, reservedRequest(1, nil))
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := f.repo.FindByKey(ctx, domain.Key{Type: domain.TypeSlotReserved, SubjectID: 1, CandidateID: 9})
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestWriter_RejectsIncompleteKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.writer.Enqueue(context.Background(), application.EnqueueRequest{Type: domain.TypeSlotReserved, SubjectID: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidNotification)
}

func TestWriter_DuplicateReminderKeepsOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := application.EnqueueRequest{Type: domain.TypeReminder, SubjectID: 5, CandidateID: 9}

	first, err := f.writer.Enqueue(ctx, req)
	require.NoError(t, err)
	second, err := f.writer.Enqueue(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())

	counts, err := f.repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.StatusPending]+counts[domain.StatusSent]+counts[domain.StatusFailed])
}
