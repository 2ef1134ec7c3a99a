package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/persistence"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/dbtest"
)

func createSlot(t *testing.T, repo *persistence.SlotRepository, start time.Time) *domain.Slot {
	t.Helper()
	slot := newSlot(t, 1, start, 30*time.Minute)
	require.NoError(t, repo.Create(context.Background(), slot))
	return slot
}

func TestAssignmentRepository_OneActivePerCandidate(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	slots := persistence.NewSlotRepository(conn)
	repo := persistence.NewAssignmentRepository(conn)
	ctx := context.Background()

	s1 := createSlot(t, slots, monday)
	s2 := createSlot(t, slots, monday.Add(time.Hour))

	first, err := domain.NewAssignment(s1.ID(), 1, 9, domain.AssignmentOffered, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, first))

	second, err := domain.NewAssignment(s2.ID(), 1, 9, domain.AssignmentOffered, now)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, second), domain.ErrActiveAssignmentExists)

	// Once the first is terminal the candidate may be offered again.
	ok, err := repo.TransitionStatus(ctx, first.ID(), domain.AssignmentOffered, domain.AssignmentRejected, now)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.Create(ctx, second))

	active, err := repo.FindActiveByCandidate(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID(), active.ID())
	assert.Equal(t, s2.ID(), active.SlotID())
}

func TestAssignmentRepository_TransitionIsConditional(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	slots := persistence.NewSlotRepository(conn)
	repo := persistence.NewAssignmentRepository(conn)
	ctx := context.Background()

	s1 := createSlot(t, slots, monday)
	a, err := domain.NewAssignment(s1.ID(), 1, 9, domain.AssignmentOffered, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, a))

	ok, err := repo.TransitionStatus(ctx, a.ID(), domain.AssignmentConfirmed, domain.AssignmentCompleted, now)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentOffered, found.Status())

	missing, err := repo.FindByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)

	none, err := repo.FindActiveByCandidate(ctx, 77)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRescheduleRequestRepository_OnePendingPerAssignment(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	slots := persistence.NewSlotRepository(conn)
	assignments := persistence.NewAssignmentRepository(conn)
	repo := persistence.NewRescheduleRequestRepository(conn)
	ctx := context.Background()

	s1 := createSlot(t, slots, monday)
	a, err := domain.NewAssignment(s1.ID(), 1, 9, domain.AssignmentOffered, now)
	require.NoError(t, err)
	require.NoError(t, assignments.Create(ctx, a))

	first, err := domain.NewRescheduleRequest(a.ID(), monday.Add(24*time.Hour), 30*time.Minute, "later please", now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, first))

	second, err := domain.NewRescheduleRequest(a.ID(), monday.Add(48*time.Hour), 30*time.Minute, "", now)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, second), domain.ErrPendingRescheduleExists)

	require.NoError(t, first.Decline(now.Add(time.Hour)))
	ok, err := repo.Decide(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)

	// Deciding twice affects nothing.
	ok, err = repo.Decide(ctx, first)
	require.NoError(t, err)
	assert.False(t, ok)

	loaded, err := repo.FindByID(ctx, first.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.RescheduleDeclined, loaded.Status())
	assert.Equal(t, "later please", loaded.Comment())
	require.NotNil(t, loaded.DecidedAt())
	assert.True(t, now.Add(time.Hour).Equal(*loaded.DecidedAt()))

	require.NoError(t, repo.Create(ctx, second))
}
