package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// AssignmentView is the read model of an assignment with its slot.
type AssignmentView struct {
	ID          int64     `json:"id"`
	SlotID      int64     `json:"slot_id"`
	OwnerID     int64     `json:"owner_id"`
	CandidateID int64     `json:"candidate_id"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
	Slot        *SlotView `json:"slot,omitempty"`
}

// GetActiveAssignmentQuery selects the candidate's active assignment.
type GetActiveAssignmentQuery struct {
	CandidateID int64
}

// GetActiveAssignmentHandler handles GetActiveAssignmentQuery.
type GetActiveAssignmentHandler struct {
	assignmentRepo domain.AssignmentRepository
	slotRepo       domain.SlotRepository
}

// NewGetActiveAssignmentHandler creates a new handler.
func NewGetActiveAssignmentHandler(assignmentRepo domain.AssignmentRepository, slotRepo domain.SlotRepository) *GetActiveAssignmentHandler {
	return &GetActiveAssignmentHandler{assignmentRepo: assignmentRepo, slotRepo: slotRepo}
}

// Handle returns nil when the candidate has no active assignment.
func (h *GetActiveAssignmentHandler) Handle(ctx context.Context, q GetActiveAssignmentQuery) (*AssignmentView, error) {
	a, err := h.assignmentRepo.FindActiveByCandidate(ctx, q.CandidateID)
	if err != nil || a == nil {
		return nil, err
	}

	view := &AssignmentView{
		ID:          a.ID(),
		SlotID:      a.SlotID(),
		OwnerID:     a.OwnerID(),
		CandidateID: a.CandidateID(),
		Status:      string(a.Status()),
		UpdatedAt:   a.UpdatedAt(),
	}
	slot, err := h.slotRepo.FindByID(ctx, a.SlotID())
	if err != nil {
		return nil, err
	}
	if slot != nil {
		sv := NewSlotView(slot)
		view.Slot = &sv
	}
	return view, nil
}
