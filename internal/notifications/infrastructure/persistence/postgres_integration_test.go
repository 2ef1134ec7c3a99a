//go:build integration

package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/notifications/infrastructure/persistence"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/dbtest"
)

// Concurrent workers claim disjoint batches with FOR UPDATE SKIP LOCKED.
func TestIntegration_Postgres_ClaimSkipsLockedRows(t *testing.T) {
	repo := persistence.NewOutboxRepository(dbtest.NewPostgres(t))
	ctx := context.Background()

	for i := int64(1); i <= 40; i++ {
		_, err := repo.InsertIfAbsent(ctx, newNotification(t, i, 9))
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = map[int64]string{}
		wg   sync.WaitGroup
	)
	for _, worker := range []string{"w1", "w2", "w3", "w4", "w5"} {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			claimed, err := repo.Claim(ctx, worker, 10, time.Minute, now)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, n := range claimed {
				prev, dup := seen[n.ID()]
				assert.False(t, dup, "notification %d claimed by %s and %s", n.ID(), prev, worker)
				seen[n.ID()] = worker
			}
		}(worker)
	}
	wg.Wait()

	assert.Len(t, seen, 40)
}

func TestIntegration_Postgres_InsertIfAbsentIsUnique(t *testing.T) {
	repo := persistence.NewOutboxRepository(dbtest.NewPostgres(t))
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertIfAbsent(ctx, newNotification(t, 1, 9))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	n, err := repo.FindByKey(ctx, domain.Key{Type: domain.TypeSlotReserved, SubjectID: 1, CandidateID: 9})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, domain.StatusPending, n.Status())
}
