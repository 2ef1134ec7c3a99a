package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
)

// RescheduleStatus is the decision state of a reschedule request.
type RescheduleStatus string

const (
	ReschedulePending  RescheduleStatus = "pending"
	RescheduleApproved RescheduleStatus = "approved"
	RescheduleDeclined RescheduleStatus = "declined"
)

// RescheduleRequest is a candidate's proposal to move an assignment.
type RescheduleRequest struct {
	sharedDomain.BaseEntity
	assignmentID   int64
	requestedStart time.Time
	duration       time.Duration
	comment        string
	status         RescheduleStatus
	decidedAt      *time.Time
}

// NewRescheduleRequest validates and creates a pending request.
func NewRescheduleRequest(assignmentID int64, requestedStart time.Time, duration time.Duration, comment string, now time.Time) (*RescheduleRequest, error) {
	if assignmentID <= 0 {
		return nil, invalid("assignment_id", "must be positive")
	}
	if requestedStart.IsZero() {
		return nil, invalid("requested_start", "is required")
	}
	if !requestedStart.After(now) {
		return nil, invalid("requested_start", "must be in the future")
	}
	if err := ValidateDuration(duration); err != nil {
		return nil, err
	}
	return &RescheduleRequest{
		BaseEntity:     sharedDomain.NewBaseEntity(now),
		assignmentID:   assignmentID,
		requestedStart: requestedStart.UTC().Truncate(time.Minute),
		duration:       duration,
		comment:        comment,
		status:         ReschedulePending,
	}, nil
}

func (r *RescheduleRequest) AssignmentID() int64       { return r.assignmentID }
func (r *RescheduleRequest) RequestedStart() time.Time { return r.requestedStart }
func (r *RescheduleRequest) Duration() time.Duration   { return r.duration }
func (r *RescheduleRequest) Comment() string           { return r.comment }
func (r *RescheduleRequest) Status() RescheduleStatus  { return r.status }
func (r *RescheduleRequest) DecidedAt() *time.Time     { return r.decidedAt }
func (r *RescheduleRequest) IsPending() bool           { return r.status == ReschedulePending }

// Approve records the owner's approval.
func (r *RescheduleRequest) Approve(now time.Time) error {
	return r.decide(RescheduleApproved, now)
}

// Decline records the owner's refusal.
func (r *RescheduleRequest) Decline(now time.Time) error {
	return r.decide(RescheduleDeclined, now)
}

func (r *RescheduleRequest) decide(status RescheduleStatus, now time.Time) error {
	if r.status != ReschedulePending {
		return ErrRescheduleNotPending
	}
	now = now.UTC()
	r.status = status
	r.decidedAt = &now
	r.Touch(now)
	return nil
}

// RehydrateRescheduleRequest recreates a request from persisted state.
func RehydrateRescheduleRequest(
	id, assignmentID int64,
	requestedStart time.Time,
	duration time.Duration,
	comment string,
	status RescheduleStatus,
	decidedAt *time.Time,
	createdAt time.Time,
) *RescheduleRequest {
	updatedAt := createdAt
	if decidedAt != nil {
		updatedAt = *decidedAt
	}
	return &RescheduleRequest{
		BaseEntity:     sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		assignmentID:   assignmentID,
		requestedStart: requestedStart.UTC(),
		duration:       duration,
		comment:        comment,
		status:         status,
		decidedAt:      decidedAt,
	}
}
