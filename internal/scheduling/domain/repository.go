package domain

import (
	"context"
	"time"
)

// SlotRepository defines persistence for slots. Status changes are
// conditional on the expected current status, so a lost race reports false
// instead of overwriting.
type SlotRepository interface {
	// Create inserts the slot and assigns its ID. An overlapping window
	// returns *OverlapError.
	Create(ctx context.Context, slot *Slot) error

	// FindByID returns nil when the slot does not exist.
	FindByID(ctx context.Context, id int64) (*Slot, error)

	// TransitionStatus moves a slot from -> to. A FREE target clears the
	// candidate; otherwise a positive candidateID is stored.
	TransitionStatus(ctx context.Context, id int64, from, to Status, candidateID int64, now time.Time) (bool, error)

	// Reserve is the FREE -> PENDING compare-and-swap.
	Reserve(ctx context.Context, id, candidateID int64, now time.Time) (bool, error)

	// FindActiveHold returns a held slot of the candidate with the same owner
	// and purpose, or nil.
	FindActiveHold(ctx context.Context, candidateID, ownerID int64, purpose Purpose) (*Slot, error)

	// ListAvailable returns FREE slots of the owner starting in [from, to).
	ListAvailable(ctx context.Context, ownerID int64, from, to time.Time) ([]*Slot, error)

	// DeleteStaleFree removes unclaimed FREE slots that started before cutoff.
	DeleteStaleFree(ctx context.Context, before time.Time) (int64, error)
}

// AssignmentRepository defines persistence for assignments.
type AssignmentRepository interface {
	// Create inserts the assignment. A second active assignment for the
	// candidate returns ErrActiveAssignmentExists.
	Create(ctx context.Context, a *Assignment) error

	// FindByID returns nil when the assignment does not exist.
	FindByID(ctx context.Context, id int64) (*Assignment, error)

	// FindActiveByCandidate returns nil when the candidate has no active assignment.
	FindActiveByCandidate(ctx context.Context, candidateID int64) (*Assignment, error)

	// FindActiveBySlot returns nil when no active assignment points at the slot.
	FindActiveBySlot(ctx context.Context, slotID int64) (*Assignment, error)

	// TransitionStatus moves an assignment from -> to. A status change that
	// activates a second assignment returns ErrActiveAssignmentExists.
	TransitionStatus(ctx context.Context, id int64, from, to AssignmentStatus, now time.Time) (bool, error)
}

// RescheduleRequestRepository defines persistence for reschedule requests.
type RescheduleRequestRepository interface {
	// Create inserts a pending request. A second pending request for the
	// assignment returns ErrPendingRescheduleExists.
	Create(ctx context.Context, r *RescheduleRequest) error

	// FindByID returns nil when the request does not exist.
	FindByID(ctx context.Context, id int64) (*RescheduleRequest, error)

	// Decide records the decision of a pending request.
	Decide(ctx context.Context, r *RescheduleRequest) (bool, error)
}
