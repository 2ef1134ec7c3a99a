//go:build integration

package persistence_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/persistence"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/dbtest"
)

func TestIntegration_Postgres_ExclusionConstraint(t *testing.T) {
	repo := persistence.NewSlotRepository(dbtest.NewPostgres(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSlot(t, 1, monday, time.Hour)))

	err := repo.Create(ctx, newSlot(t, 1, monday.Add(30*time.Minute), time.Hour))
	var overlap *domain.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, int64(1), overlap.OwnerID)

	// Half-open ranges: back-to-back slots do not collide.
	require.NoError(t, repo.Create(ctx, newSlot(t, 1, monday.Add(time.Hour), time.Hour)))
	require.NoError(t, repo.Create(ctx, newSlot(t, 2, monday, time.Hour)))
}

func TestIntegration_Postgres_ConcurrentOverlappingInserts(t *testing.T) {
	repo := persistence.NewSlotRepository(dbtest.NewPostgres(t))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			slot := newSlot(t, 1, monday.Add(time.Duration(offset)*5*time.Minute), time.Hour)
			err := repo.Create(ctx, slot)
			if err == nil {
				created.Add(1)
				return
			}
			var overlap *domain.OverlapError
			assert.ErrorAs(t, err, &overlap)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load(), "every window overlaps every other")
	slots, err := repo.ListAvailable(ctx, 1, monday.Add(-time.Hour), monday.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestIntegration_Postgres_ReserveIsCompareAndSwap(t *testing.T) {
	repo := persistence.NewSlotRepository(dbtest.NewPostgres(t))
	ctx := context.Background()

	slot := newSlot(t, 1, monday, time.Hour)
	require.NoError(t, repo.Create(ctx, slot))

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for candidate := int64(1); candidate <= 8; candidate++ {
		wg.Add(1)
		go func(candidate int64) {
			defer wg.Done()
			ok, err := repo.Reserve(ctx, slot.ID(), candidate, now)
			assert.NoError(t, err)
			if ok {
				won.Add(1)
			}
		}(candidate)
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	stored, err := repo.FindByID(ctx, slot.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status())
}
