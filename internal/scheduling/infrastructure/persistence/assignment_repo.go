package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

const assignmentColumns = `id, slot_id, owner_id, candidate_id, status, created_at, updated_at`

// AssignmentRepository implements domain.AssignmentRepository.
type AssignmentRepository struct {
	conn database.Connection
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(conn database.Connection) *AssignmentRepository {
	return &AssignmentRepository{conn: conn}
}

func (r *AssignmentRepository) executor(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Create inserts an assignment and assigns its ID.
func (r *AssignmentRepository) Create(ctx context.Context, a *domain.Assignment) error {
	var id int64
	err := r.executor(ctx).QueryRow(ctx, `
		INSERT INTO slot_assignments (slot_id, owner_id, candidate_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		a.SlotID(), a.OwnerID(), a.CandidateID(), string(a.Status()), a.CreatedAt(), a.UpdatedAt(),
	).Scan(&id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrActiveAssignmentExists
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	a.AssignID(id)
	return nil
}

// FindByID retrieves an assignment by its ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id int64) (*domain.Assignment, error) {
	a, err := scanAssignment(r.executor(ctx).QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM slot_assignments WHERE id = ?`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load assignment %d: %w", id, err)
	}
	return a, nil
}

// FindActiveByCandidate returns the candidate's active assignment.
func (r *AssignmentRepository) FindActiveByCandidate(ctx context.Context, candidateID int64) (*domain.Assignment, error) {
	a, err := scanAssignment(r.executor(ctx).QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM slot_assignments
		WHERE candidate_id = ?
		  AND status IN ('offered', 'confirmed', 'reschedule_requested', 'reschedule_confirmed')`,
		candidateID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active assignment: %w", err)
	}
	return a, nil
}

// FindActiveBySlot returns the newest active assignment on the slot.
func (r *AssignmentRepository) FindActiveBySlot(ctx context.Context, slotID int64) (*domain.Assignment, error) {
	a, err := scanAssignment(r.executor(ctx).QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM slot_assignments
		WHERE slot_id = ?
		  AND status IN ('offered', 'confirmed', 'reschedule_requested', 'reschedule_confirmed')
		ORDER BY id DESC
		LIMIT 1`,
		slotID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active assignment of slot %d: %w", slotID, err)
	}
	return a, nil
}

// TransitionStatus moves the assignment from -> to if it is still in from.
func (r *AssignmentRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.AssignmentStatus, now time.Time) (bool, error) {
	res, err := r.executor(ctx).Exec(ctx, `
		UPDATE slot_assignments
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), now.UTC(), id, string(from))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, domain.ErrActiveAssignmentExists
		}
		return false, fmt.Errorf("failed to update assignment %d: %w", id, err)
	}
	return affectedOne(res)
}

func scanAssignment(row database.Row) (*domain.Assignment, error) {
	var (
		id, slotID, ownerID, candidateID int64
		status                           string
		createdAt, updatedAt             time.Time
	)
	if err := row.Scan(&id, &slotID, &ownerID, &candidateID, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return domain.RehydrateAssignment(id, slotID, ownerID, candidateID, domain.AssignmentStatus(status), createdAt, updatedAt), nil
}
