package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
)

// AssignmentStatus is the negotiation state of an assignment.
type AssignmentStatus string

const (
	AssignmentOffered             AssignmentStatus = "offered"
	AssignmentConfirmed           AssignmentStatus = "confirmed"
	AssignmentRescheduleRequested AssignmentStatus = "reschedule_requested"
	AssignmentRescheduleConfirmed AssignmentStatus = "reschedule_confirmed"
	AssignmentRejected            AssignmentStatus = "rejected"
	AssignmentCancelled           AssignmentStatus = "cancelled"
	AssignmentCompleted           AssignmentStatus = "completed"
)

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentOffered:             {AssignmentConfirmed, AssignmentRescheduleRequested, AssignmentRejected, AssignmentCancelled},
	AssignmentConfirmed:           {AssignmentCompleted, AssignmentCancelled, AssignmentRescheduleRequested},
	AssignmentRescheduleRequested: {AssignmentRescheduleConfirmed, AssignmentOffered, AssignmentCancelled},
	AssignmentRescheduleConfirmed: {AssignmentCompleted, AssignmentCancelled},
	AssignmentRejected:            nil,
	AssignmentCancelled:           nil,
	AssignmentCompleted:           nil,
}

// ActiveAssignmentStatuses is the set covered by the one-per-candidate rule.
var ActiveAssignmentStatuses = []AssignmentStatus{
	AssignmentOffered,
	AssignmentConfirmed,
	AssignmentRescheduleRequested,
	AssignmentRescheduleConfirmed,
}

// IsValid reports whether s is a known status.
func (s AssignmentStatus) IsValid() bool {
	_, ok := assignmentTransitions[s]
	return ok
}

// IsActive reports whether s counts toward the one-active-per-candidate rule.
func (s AssignmentStatus) IsActive() bool {
	for _, active := range ActiveAssignmentStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no edge leaves s.
func (s AssignmentStatus) IsTerminal() bool {
	return s.IsValid() && len(assignmentTransitions[s]) == 0
}

// CanTransitionTo reports whether s -> target is an allowed edge.
func (s AssignmentStatus) CanTransitionTo(target AssignmentStatus) bool {
	for _, next := range assignmentTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Assignment is the offer and negotiation record layered over one slot.
type Assignment struct {
	sharedDomain.BaseEntity
	slotID      int64
	ownerID     int64
	candidateID int64
	status      AssignmentStatus
}

// NewAssignment creates an offered assignment, or a confirmed one when a
// reschedule is approved.
func NewAssignment(slotID, ownerID, candidateID int64, status AssignmentStatus, now time.Time) (*Assignment, error) {
	if slotID <= 0 {
		return nil, invalid("slot_id", "must be positive")
	}
	if ownerID <= 0 {
		return nil, invalid("owner_id", "must be positive")
	}
	if candidateID <= 0 {
		return nil, invalid("candidate_id", "must be positive")
	}
	if status != AssignmentOffered && status != AssignmentConfirmed {
		return nil, invalid("status", "new assignments start offered or confirmed")
	}
	return &Assignment{
		BaseEntity:  sharedDomain.NewBaseEntity(now),
		slotID:      slotID,
		ownerID:     ownerID,
		candidateID: candidateID,
		status:      status,
	}, nil
}

func (a *Assignment) SlotID() int64            { return a.slotID }
func (a *Assignment) OwnerID() int64           { return a.ownerID }
func (a *Assignment) CandidateID() int64       { return a.candidateID }
func (a *Assignment) Status() AssignmentStatus { return a.status }
func (a *Assignment) IsActive() bool           { return a.status.IsActive() }

// TransitionTo moves the assignment along an allowed edge.
func (a *Assignment) TransitionTo(target AssignmentStatus, now time.Time) error {
	if !a.status.CanTransitionTo(target) {
		return &AssignmentTransitionError{From: a.status, To: target}
	}
	a.status = target
	a.Touch(now)
	return nil
}

// RehydrateAssignment recreates an assignment from persisted state.
func RehydrateAssignment(id, slotID, ownerID, candidateID int64, status AssignmentStatus, createdAt, updatedAt time.Time) *Assignment {
	return &Assignment{
		BaseEntity:  sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		slotID:      slotID,
		ownerID:     ownerID,
		candidateID: candidateID,
		status:      status,
	}
}
