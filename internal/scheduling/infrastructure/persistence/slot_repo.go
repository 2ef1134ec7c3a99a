package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

// overlapConstraint names the exclusion constraint on PostgreSQL and the
// trigger message on SQLite.
const overlapConstraint = "slots_no_overlap"

const slotColumns = `id, owner_id, location_id, start_at, duration_min, timezone, status, purpose, candidate_id, capacity, created_at, updated_at`

// SlotRepository implements domain.SlotRepository for any database driver.
type SlotRepository struct {
	conn database.Connection
}

// NewSlotRepository creates a new slot repository.
func NewSlotRepository(conn database.Connection) *SlotRepository {
	return &SlotRepository{conn: conn}
}

func (r *SlotRepository) executor(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Create inserts a slot and assigns its ID.
func (r *SlotRepository) Create(ctx context.Context, slot *domain.Slot) error {
	var id int64
	err := r.executor(ctx).QueryRow(ctx, `
		INSERT INTO slots (owner_id, location_id, start_at, end_at, duration_min, timezone, status, purpose, candidate_id, capacity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		slot.OwnerID(),
		slot.LocationID(),
		slot.Start(),
		slot.End(),
		int(slot.Duration()/time.Minute),
		slot.Timezone(),
		string(slot.Status()),
		string(slot.Purpose()),
		database.NullableInt64(slot.CandidateID()),
		slot.Capacity(),
		slot.CreatedAt(),
		slot.UpdatedAt(),
	).Scan(&id)
	if err != nil {
		return translateSlotError(err, slot.OwnerID(), slot.Start())
	}

	slot.AssignID(id)
	return nil
}

// FindByID retrieves a slot by its ID.
func (r *SlotRepository) FindByID(ctx context.Context, id int64) (*domain.Slot, error) {
	slot, err := scanSlot(r.executor(ctx).QueryRow(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = ?`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load slot %d: %w", id, err)
	}
	return slot, nil
}

// TransitionStatus moves the slot from -> to if it is still in from.
func (r *SlotRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.Status, candidateID int64, now time.Time) (bool, error) {
	query := `UPDATE slots SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	args := []any{string(to), now.UTC(), id, string(from)}

	switch {
	case to == domain.StatusFree:
		query = `UPDATE slots SET status = ?, candidate_id = NULL, updated_at = ? WHERE id = ? AND status = ?`
	case candidateID > 0:
		query = `UPDATE slots SET status = ?, candidate_id = ?, updated_at = ? WHERE id = ? AND status = ?`
		args = []any{string(to), candidateID, now.UTC(), id, string(from)}
	}

	res, err := r.executor(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, translateUpdateError(err, id)
	}
	return affectedOne(res)
}

// Reserve places a FREE slot on hold for the candidate.
func (r *SlotRepository) Reserve(ctx context.Context, id, candidateID int64, now time.Time) (bool, error) {
	res, err := r.executor(ctx).Exec(ctx, `
		UPDATE slots
		SET status = ?, candidate_id = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.StatusPending), candidateID, now.UTC(), id, string(domain.StatusFree))
	if err != nil {
		return false, translateUpdateError(err, id)
	}
	return affectedOne(res)
}

// FindActiveHold returns the candidate's held slot with the owner for purpose.
func (r *SlotRepository) FindActiveHold(ctx context.Context, candidateID, ownerID int64, purpose domain.Purpose) (*domain.Slot, error) {
	slot, err := scanSlot(r.executor(ctx).QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE candidate_id = ? AND owner_id = ? AND purpose = ?
		  AND status IN ('PENDING', 'BOOKED', 'CONFIRMED', 'CONFIRMED_BY_CANDIDATE')
		ORDER BY start_at
		LIMIT 1`,
		candidateID, ownerID, string(purpose)))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active hold: %w", err)
	}
	return slot, nil
}

// ListAvailable returns FREE slots of the owner starting in [from, to).
func (r *SlotRepository) ListAvailable(ctx context.Context, ownerID int64, from, to time.Time) ([]*domain.Slot, error) {
	rows, err := r.executor(ctx).Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE owner_id = ? AND status = ? AND start_at >= ? AND start_at < ?
		ORDER BY start_at`,
		ownerID, string(domain.StatusFree), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list available slots: %w", err)
	}
	defer rows.Close()

	var slots []*domain.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// DeleteStaleFree removes FREE slots that were never claimed and started
// before the cutoff.
func (r *SlotRepository) DeleteStaleFree(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.executor(ctx).Exec(ctx, `
		DELETE FROM slots
		WHERE status = ? AND candidate_id IS NULL AND start_at < ?
		  AND NOT EXISTS (SELECT 1 FROM slot_assignments a WHERE a.slot_id = slots.id)`,
		string(domain.StatusFree), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale slots: %w", err)
	}
	return res.RowsAffected()
}

// translateUpdateError types an overlap hit by a status update. The row is
// not re-read: PostgreSQL has aborted the transaction by then, so callers
// fill in the owner and start of the slot they hold.
func translateUpdateError(err error, id int64) error {
	if isOverlap(err) {
		return &domain.OverlapError{}
	}
	return fmt.Errorf("failed to update slot %d: %w", id, err)
}

func translateSlotError(err error, ownerID int64, start time.Time) error {
	if isOverlap(err) {
		return &domain.OverlapError{OwnerID: ownerID, Start: start}
	}
	return fmt.Errorf("failed to insert slot: %w", err)
}

func isOverlap(err error) bool {
	v, ok := database.AsConstraintViolation(err)
	if !ok {
		return false
	}
	return v.Kind == database.ConstraintExclusion || database.IsConstraint(err, overlapConstraint)
}

func scanSlot(row database.Row) (*domain.Slot, error) {
	var (
		id, ownerID, locationID int64
		start                   time.Time
		durationMin             int
		timezone                string
		status, purpose         string
		candidateID             sql.NullInt64
		capacity                int
		createdAt, updatedAt    time.Time
	)
	if err := row.Scan(&id, &ownerID, &locationID, &start, &durationMin, &timezone, &status, &purpose,
		&candidateID, &capacity, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	return domain.RehydrateSlot(
		id, ownerID, locationID,
		start,
		time.Duration(durationMin)*time.Minute,
		timezone,
		domain.Status(status),
		domain.Purpose(purpose),
		candidateID.Int64,
		capacity,
		createdAt, updatedAt,
	), nil
}

func affectedOne(res database.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
