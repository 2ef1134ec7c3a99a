package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

// ReservationLockRepository implements domain.ReservationLock on the
// reservation_locks table. An expired row is taken over in place.
type ReservationLockRepository struct {
	conn  database.Connection
	clock sharedDomain.Clock
}

// NewReservationLockRepository creates a table-backed reservation lock.
func NewReservationLockRepository(conn database.Connection, clock sharedDomain.Clock) *ReservationLockRepository {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &ReservationLockRepository{conn: conn, clock: clock}
}

// Acquire inserts the lock row, or takes over an expired one.
func (r *ReservationLockRepository) Acquire(ctx context.Context, key domain.LockKey, token string, ttl time.Duration) (bool, error) {
	now := r.clock.Now()
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO reservation_locks (candidate_id, owner_id, slot_date, token, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (candidate_id, owner_id, slot_date)
		DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at
		WHERE reservation_locks.expires_at <= ?`,
		key.CandidateID, key.OwnerID, key.Date, token, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("failed to acquire reservation lock %s: %w", key, err)
	}
	return affectedOne(res)
}

// Release deletes the lock if it is still held under token.
func (r *ReservationLockRepository) Release(ctx context.Context, key domain.LockKey, token string) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		DELETE FROM reservation_locks
		WHERE candidate_id = ? AND owner_id = ? AND slot_date = ? AND token = ?`,
		key.CandidateID, key.OwnerID, key.Date, token)
	if err != nil {
		return fmt.Errorf("failed to release reservation lock %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes locks that expired before cutoff.
func (r *ReservationLockRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`DELETE FROM reservation_locks WHERE expires_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge reservation locks: %w", err)
	}
	return res.RowsAffected()
}
