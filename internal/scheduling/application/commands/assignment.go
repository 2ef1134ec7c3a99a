package commands

import (
	"context"
	"fmt"

	notifDomain "github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
)

// OfferAssignmentCommand offers a FREE slot of the owner to a candidate.
type OfferAssignmentCommand struct {
	SlotID      int64
	CandidateID int64
	OwnerID     int64
}

// AssignmentTokenCommand is a candidate action authorized by a one-time token.
type AssignmentTokenCommand struct {
	AssignmentID int64
	Token        string
}

// AssignmentActionCommand is a recruiter action on an assignment.
type AssignmentActionCommand struct {
	AssignmentID int64
	OwnerID      int64
}

// AssignmentResult is an assignment together with its slot after a change.
type AssignmentResult struct {
	Assignment *domain.Assignment
	Slot       *domain.Slot
}

// OfferAssignmentHandler holds a slot for a candidate and offers it.
type OfferAssignmentHandler struct {
	base
}

// NewOfferAssignmentHandler creates a new OfferAssignmentHandler.
func NewOfferAssignmentHandler(deps Dependencies) *OfferAssignmentHandler {
	return &OfferAssignmentHandler{base: newBase(deps)}
}

// Handle reserves the slot and creates an offered assignment.
func (h *OfferAssignmentHandler) Handle(ctx context.Context, cmd OfferAssignmentCommand) (*AssignmentResult, error) {
	if cmd.CandidateID <= 0 {
		return nil, &domain.ValidationError{Field: "candidate_id", Reason: "must be positive"}
	}

	result, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*AssignmentResult, error) {
		slot, err := h.loadSlot(txCtx, cmd.SlotID, cmd.OwnerID)
		if err != nil {
			return nil, err
		}
		if err := slot.Hold(cmd.CandidateID, h.now()); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrSlotUnavailable, err)
		}
		ok, err := h.deps.Slots.Reserve(txCtx, slot.ID(), cmd.CandidateID, h.now())
		if err != nil {
			return nil, withSlotWindow(err, slot)
		}
		if !ok {
			return nil, domain.ErrSlotUnavailable
		}

		a, err := domain.NewAssignment(slot.ID(), slot.OwnerID(), cmd.CandidateID, domain.AssignmentOffered, h.now())
		if err != nil {
			return nil, err
		}
		if err := h.deps.Assignments.Create(txCtx, a); err != nil {
			return nil, err
		}

		extra := map[string]any{"assignment_id": a.ID()}
		if err := h.notify(txCtx, notifDomain.TypeAssignmentOffered, a.ID(), slot, a.CandidateID(), extra); err != nil {
			return nil, err
		}
		return &AssignmentResult{Assignment: a, Slot: slot}, nil
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, result.Slot.OwnerID())
	h.deps.Logger.InfoContext(ctx, "assignment offered",
		"assignment_id", result.Assignment.ID(),
		"slot_id", result.Slot.ID(),
		"candidate_id", result.Assignment.CandidateID(),
	)
	return result, nil
}

// ConfirmAssignmentHandler records a candidate's acceptance.
type ConfirmAssignmentHandler struct {
	base
}

// NewConfirmAssignmentHandler creates a new ConfirmAssignmentHandler.
func NewConfirmAssignmentHandler(deps Dependencies) *ConfirmAssignmentHandler {
	return &ConfirmAssignmentHandler{base: newBase(deps)}
}

// Handle spends the token, confirms the assignment and books the slot.
func (h *ConfirmAssignmentHandler) Handle(ctx context.Context, cmd AssignmentTokenCommand) (*AssignmentResult, error) {
	result, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*AssignmentResult, error) {
		if err := h.consumeToken(txCtx, cmd.Token, domain.ActionConfirmAssignment, cmd.AssignmentID); err != nil {
			return nil, err
		}
		a, err := h.loadAssignment(txCtx, cmd.AssignmentID, 0)
		if err != nil {
			return nil, err
		}
		slot, err := h.loadSlot(txCtx, a.SlotID(), 0)
		if err != nil {
			return nil, err
		}
		if !slot.Status().IsHeld() || slot.CandidateID() != a.CandidateID() {
			return nil, fmt.Errorf("slot %d is no longer held for candidate %d: %w",
				slot.ID(), a.CandidateID(), domain.ErrSlotUnavailable)
		}
		if err := h.transitionAssignment(txCtx, a, domain.AssignmentConfirmed); err != nil {
			return nil, err
		}
		// A declined reschedule leaves the slot booked already.
		if slot.Status() == domain.StatusPending {
			if err := h.transitionSlot(txCtx, slot, domain.StatusBooked); err != nil {
				return nil, err
			}
		}

		extra := map[string]any{"assignment_id": a.ID()}
		if err := h.notify(txCtx, notifDomain.TypeAssignmentConfirmed, a.ID(), slot, a.CandidateID(), extra); err != nil {
			return nil, err
		}
		return &AssignmentResult{Assignment: a, Slot: slot}, nil
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, result.Slot.OwnerID())
	h.deps.Logger.InfoContext(ctx, "assignment confirmed", "assignment_id", result.Assignment.ID())
	return result, nil
}

// RejectAssignmentHandler records a candidate's refusal.
type RejectAssignmentHandler struct {
	base
}

// NewRejectAssignmentHandler creates a new RejectAssignmentHandler.
func NewRejectAssignmentHandler(deps Dependencies) *RejectAssignmentHandler {
	return &RejectAssignmentHandler{base: newBase(deps)}
}

// Handle spends the token, rejects the assignment and frees the slot.
func (h *RejectAssignmentHandler) Handle(ctx context.Context, cmd AssignmentTokenCommand) (*AssignmentResult, error) {
	result, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*AssignmentResult, error) {
		if err := h.consumeToken(txCtx, cmd.Token, domain.ActionRejectAssignment, cmd.AssignmentID); err != nil {
			return nil, err
		}
		a, err := h.loadAssignment(txCtx, cmd.AssignmentID, 0)
		if err != nil {
			return nil, err
		}
		if err := h.transitionAssignment(txCtx, a, domain.AssignmentRejected); err != nil {
			return nil, err
		}
		slot, err := h.releaseAssignedSlot(txCtx, a)
		if err != nil {
			return nil, err
		}

		extra := map[string]any{"assignment_id": a.ID()}
		if err := h.notify(txCtx, notifDomain.TypeAssignmentRejected, a.ID(), slot, a.CandidateID(), extra); err != nil {
			return nil, err
		}
		return &AssignmentResult{Assignment: a, Slot: slot}, nil
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, result.Slot.OwnerID())
	h.deps.Logger.InfoContext(ctx, "assignment rejected", "assignment_id", result.Assignment.ID())
	return result, nil
}

// CompleteAssignmentHandler closes an assignment after the meeting happened.
type CompleteAssignmentHandler struct {
	base
}

// NewCompleteAssignmentHandler creates a new CompleteAssignmentHandler.
func NewCompleteAssignmentHandler(deps Dependencies) *CompleteAssignmentHandler {
	return &CompleteAssignmentHandler{base: newBase(deps)}
}

// Handle moves a confirmed assignment to completed.
func (h *CompleteAssignmentHandler) Handle(ctx context.Context, cmd AssignmentActionCommand) (*domain.Assignment, error) {
	a, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*domain.Assignment, error) {
		a, err := h.loadAssignment(txCtx, cmd.AssignmentID, cmd.OwnerID)
		if err != nil {
			return nil, err
		}
		if err := h.transitionAssignment(txCtx, a, domain.AssignmentCompleted); err != nil {
			return nil, err
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.InfoContext(ctx, "assignment completed", "assignment_id", a.ID())
	return a, nil
}

// CancelAssignmentHandler withdraws an assignment on the recruiter side.
type CancelAssignmentHandler struct {
	base
}

// NewCancelAssignmentHandler creates a new CancelAssignmentHandler.
func NewCancelAssignmentHandler(deps Dependencies) *CancelAssignmentHandler {
	return &CancelAssignmentHandler{base: newBase(deps)}
}

// Handle cancels the assignment, frees its slot and tells the candidate.
func (h *CancelAssignmentHandler) Handle(ctx context.Context, cmd AssignmentActionCommand) (*AssignmentResult, error) {
	result, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*AssignmentResult, error) {
		a, err := h.loadAssignment(txCtx, cmd.AssignmentID, cmd.OwnerID)
		if err != nil {
			return nil, err
		}
		if err := h.transitionAssignment(txCtx, a, domain.AssignmentCancelled); err != nil {
			return nil, err
		}
		slot, err := h.releaseAssignedSlot(txCtx, a)
		if err != nil {
			return nil, err
		}

		extra := map[string]any{"assignment_id": a.ID()}
		if err := h.notify(txCtx, notifDomain.TypeAssignmentCancelled, a.ID(), slot, a.CandidateID(), extra); err != nil {
			return nil, err
		}
		return &AssignmentResult{Assignment: a, Slot: slot}, nil
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, result.Slot.OwnerID())
	h.deps.Logger.InfoContext(ctx, "assignment cancelled", "assignment_id", result.Assignment.ID())
	return result, nil
}

// releaseAssignedSlot frees the assignment's slot while the candidate still
// holds it.
func (b base) releaseAssignedSlot(ctx context.Context, a *domain.Assignment) (*domain.Slot, error) {
	slot, err := b.loadSlot(ctx, a.SlotID(), 0)
	if err != nil {
		return nil, err
	}
	if slot.Status().IsHeld() && slot.CandidateID() == a.CandidateID() {
		if err := b.transitionSlot(ctx, slot, domain.StatusFree); err != nil {
			return nil, err
		}
	}
	return slot, nil
}

// cancelSlotAssignment cancels the active assignment on slot, if any, and
// tells its candidate. It runs before the slot leaves the candidate.
func (b base) cancelSlotAssignment(ctx context.Context, slot *domain.Slot) error {
	a, err := b.deps.Assignments.FindActiveBySlot(ctx, slot.ID())
	if err != nil {
		return err
	}
	if a == nil {
		return nil
	}
	if err := b.transitionAssignment(ctx, a, domain.AssignmentCancelled); err != nil {
		return err
	}
	extra := map[string]any{"assignment_id": a.ID()}
	return b.notify(ctx, notifDomain.TypeAssignmentCancelled, a.ID(), slot, a.CandidateID(), extra)
}
