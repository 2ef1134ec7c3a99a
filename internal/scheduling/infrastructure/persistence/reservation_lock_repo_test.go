package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/persistence"
	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/dbtest"
)

func TestReservationLockRepository(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	clock := sharedDomain.NewManualClock(now)
	lock := persistence.NewReservationLockRepository(conn, clock)
	ctx := context.Background()
	key := domain.LockKey{CandidateID: 9, OwnerID: 1, Date: "2026-05-04"}

	ok, err := lock.Acquire(ctx, key, "a", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(ctx, key, "b", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be taken over")

	// Releasing with the wrong token is a no-op.
	require.NoError(t, lock.Release(ctx, key, "b"))
	ok, err = lock.Acquire(ctx, key, "b", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, key, "a"))
	ok, err = lock.Acquire(ctx, key, "b", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReservationLockRepository_ExpiredLockIsTakenOver(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	clock := sharedDomain.NewManualClock(now)
	lock := persistence.NewReservationLockRepository(conn, clock)
	ctx := context.Background()
	key := domain.LockKey{CandidateID: 9, OwnerID: 1, Date: "2026-05-04"}

	ok, err := lock.Acquire(ctx, key, "a", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(11 * time.Second)
	ok, err = lock.Acquire(ctx, key, "b", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// The stale holder can no longer release it.
	require.NoError(t, lock.Release(ctx, key, "a"))
	ok, err = lock.Acquire(ctx, key, "c", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(time.Minute)
	n, err := lock.PurgeExpired(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestActionTokenRepository(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	clock := sharedDomain.NewManualClock(now)
	store := persistence.NewActionTokenRepository(conn, clock)
	ctx := context.Background()

	token, err := store.Issue(ctx, domain.ActionConfirmAssignment, 42, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.ErrorIs(t, store.Consume(ctx, token, domain.ActionRejectAssignment, 42), domain.ErrInvalidActionToken)
	assert.ErrorIs(t, store.Consume(ctx, token, domain.ActionConfirmAssignment, 43), domain.ErrInvalidActionToken)
	assert.ErrorIs(t, store.Consume(ctx, "unknown", domain.ActionConfirmAssignment, 42), domain.ErrInvalidActionToken)

	require.NoError(t, store.Consume(ctx, token, domain.ActionConfirmAssignment, 42))
	assert.ErrorIs(t, store.Consume(ctx, token, domain.ActionConfirmAssignment, 42), domain.ErrInvalidActionToken)

	expiring, err := store.Issue(ctx, domain.ActionRequestReschedule, 42, time.Minute)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	assert.ErrorIs(t, store.Consume(ctx, expiring, domain.ActionRequestReschedule, 42), domain.ErrInvalidActionToken)

	_, err = store.Issue(ctx, "launch_rockets", 42, time.Minute)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
