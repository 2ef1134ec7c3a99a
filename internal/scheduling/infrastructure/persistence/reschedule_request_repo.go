package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

// RescheduleRequestRepository implements domain.RescheduleRequestRepository.
type RescheduleRequestRepository struct {
	conn database.Connection
}

// NewRescheduleRequestRepository creates a new reschedule request repository.
func NewRescheduleRequestRepository(conn database.Connection) *RescheduleRequestRepository {
	return &RescheduleRequestRepository{conn: conn}
}

func (r *RescheduleRequestRepository) executor(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Create inserts a pending request and assigns its ID.
func (r *RescheduleRequestRepository) Create(ctx context.Context, req *domain.RescheduleRequest) error {
	var id int64
	err := r.executor(ctx).QueryRow(ctx, `
		INSERT INTO reschedule_requests (assignment_id, requested_start, duration_min, comment, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		req.AssignmentID(),
		req.RequestedStart(),
		int(req.Duration()/time.Minute),
		req.Comment(),
		string(req.Status()),
		req.CreatedAt(),
	).Scan(&id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrPendingRescheduleExists
		}
		return fmt.Errorf("failed to insert reschedule request: %w", err)
	}
	req.AssignID(id)
	return nil
}

// FindByID retrieves a request by its ID.
func (r *RescheduleRequestRepository) FindByID(ctx context.Context, id int64) (*domain.RescheduleRequest, error) {
	var (
		assignmentID   int64
		requestedStart time.Time
		durationMin    int
		comment        string
		status         string
		createdAt      time.Time
		decidedAt      sql.NullTime
	)
	err := r.executor(ctx).QueryRow(ctx, `
		SELECT assignment_id, requested_start, duration_min, comment, status, created_at, decided_at
		FROM reschedule_requests
		WHERE id = ?`, id,
	).Scan(&assignmentID, &requestedStart, &durationMin, &comment, &status, &createdAt, &decidedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load reschedule request %d: %w", id, err)
	}

	return domain.RehydrateRescheduleRequest(
		id, assignmentID,
		requestedStart,
		time.Duration(durationMin)*time.Minute,
		comment,
		domain.RescheduleStatus(status),
		database.TimePtr(decidedAt),
		createdAt,
	), nil
}

// Decide persists the decision of a request that is still pending.
func (r *RescheduleRequestRepository) Decide(ctx context.Context, req *domain.RescheduleRequest) (bool, error) {
	res, err := r.executor(ctx).Exec(ctx, `
		UPDATE reschedule_requests
		SET status = ?, decided_at = ?
		WHERE id = ? AND status = ?`,
		string(req.Status()), database.NullableTime(req.DecidedAt()), req.ID(), string(domain.ReschedulePending))
	if err != nil {
		return false, fmt.Errorf("failed to decide reschedule request %d: %w", req.ID(), err)
	}
	return affectedOne(res)
}
