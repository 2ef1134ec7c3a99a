package commands

import (
	"context"
	"time"

	notifDomain "github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
)

// SlotActionCommand identifies a slot acted on by its owner.
type SlotActionCommand struct {
	SlotID  int64
	OwnerID int64
}

// ApproveSlotHandler books a pending slot and tells the candidate.
type ApproveSlotHandler struct {
	base
}

// NewApproveSlotHandler creates a new ApproveSlotHandler.
func NewApproveSlotHandler(deps Dependencies) *ApproveSlotHandler {
	return &ApproveSlotHandler{base: newBase(deps)}
}

// Handle moves the slot PENDING -> BOOKED.
func (h *ApproveSlotHandler) Handle(ctx context.Context, cmd SlotActionCommand) (*domain.Slot, error) {
	slot, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*domain.Slot, error) {
		slot, err := h.loadSlot(txCtx, cmd.SlotID, cmd.OwnerID)
		if err != nil {
			return nil, err
		}
		if slot.Status() != domain.StatusPending {
			return nil, &domain.InvalidTransitionError{From: slot.Status(), To: domain.StatusBooked}
		}
		if err := h.transitionSlot(txCtx, slot, domain.StatusBooked); err != nil {
			return nil, err
		}
		if err := h.notify(txCtx, notifDomain.TypeSlotApproved, slot.ID(), slot, slot.CandidateID(), nil); err != nil {
			return nil, err
		}
		return slot, nil
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, slot.OwnerID())
	h.deps.Logger.InfoContext(ctx, "slot approved",
		"slot_id", slot.ID(),
		"candidate_id", slot.CandidateID(),
	)
	return slot, nil
}

// ConfirmSlotHandler marks a booked slot as confirmed.
type ConfirmSlotHandler struct {
	base
}

// NewConfirmSlotHandler creates a new ConfirmSlotHandler.
func NewConfirmSlotHandler(deps Dependencies) *ConfirmSlotHandler {
	return &ConfirmSlotHandler{base: newBase(deps)}
}

// Handle moves the slot BOOKED -> CONFIRMED.
func (h *ConfirmSlotHandler) Handle(ctx context.Context, cmd SlotActionCommand) (*domain.Slot, error) {
	slot, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*domain.Slot, error) {
		slot, err := h.loadSlot(txCtx, cmd.SlotID, cmd.OwnerID)
		if err != nil {
			return nil, err
		}
		if slot.Status() != domain.StatusBooked {
			return nil, &domain.InvalidTransitionError{From: slot.Status(), To: domain.StatusConfirmed}
		}
		if err := h.transitionSlot(txCtx, slot, domain.StatusConfirmed); err != nil {
			return nil, err
		}
		return slot, nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.InfoContext(ctx, "slot confirmed", "slot_id", slot.ID())
	return slot, nil
}

// CancelSlotHandler withdraws a slot for good.
type CancelSlotHandler struct {
	base
}

// NewCancelSlotHandler creates a new CancelSlotHandler.
func NewCancelSlotHandler(deps Dependencies) *CancelSlotHandler {
	return &CancelSlotHandler{base: newBase(deps)}
}

// Handle moves the slot to CANCELED, cancelling its active assignment. A
// linked candidate is notified.
func (h *CancelSlotHandler) Handle(ctx context.Context, cmd SlotActionCommand) (*domain.Slot, error) {
	slot, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*domain.Slot, error) {
		slot, err := h.loadSlot(txCtx, cmd.SlotID, cmd.OwnerID)
		if err != nil {
			return nil, err
		}
		candidateID := slot.CandidateID()
		if slot.Status().CanTransitionTo(domain.StatusCanceled) {
			if err := h.cancelSlotAssignment(txCtx, slot); err != nil {
				return nil, err
			}
		}
		if err := h.transitionSlot(txCtx, slot, domain.StatusCanceled); err != nil {
			return nil, err
		}
		if candidateID != 0 {
			if err := h.notify(txCtx, notifDomain.TypeSlotCancelled, slot.ID(), slot, candidateID, nil); err != nil {
				return nil, err
			}
		}
		return slot, nil
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, slot.OwnerID())
	h.deps.Logger.InfoContext(ctx, "slot cancelled", "slot_id", slot.ID())
	return slot, nil
}

// CleanupStaleSlotsHandler deletes FREE slots nobody claimed before they started.
type CleanupStaleSlotsHandler struct {
	base
}

// NewCleanupStaleSlotsHandler creates a new CleanupStaleSlotsHandler.
func NewCleanupStaleSlotsHandler(deps Dependencies) *CleanupStaleSlotsHandler {
	return &CleanupStaleSlotsHandler{base: newBase(deps)}
}

// Handle removes FREE slots with no candidate that start before cutoff and
// returns how many were deleted.
func (h *CleanupStaleSlotsHandler) Handle(ctx context.Context, before time.Time) (int64, error) {
	if before.IsZero() {
		return 0, &domain.ValidationError{Field: "before", Reason: "is required"}
	}
	deleted, err := h.deps.Slots.DeleteStaleFree(ctx, before)
	if err != nil {
		return 0, err
	}
	h.deps.Logger.InfoContext(ctx, "stale slots cleaned up",
		"before", before.UTC(),
		"deleted", deleted,
	)
	return deleted, nil
}
