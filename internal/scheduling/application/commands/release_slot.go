package commands

import (
	"context"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
)

// ReleaseSlotCommand returns a held slot to FREE. A non-zero OwnerID or
// CandidateID must match the slot.
type ReleaseSlotCommand struct {
	SlotID      int64
	OwnerID     int64
	CandidateID int64
}

// ReleaseSlotHandler frees held slots.
type ReleaseSlotHandler struct {
	base
}

// NewReleaseSlotHandler creates a new ReleaseSlotHandler.
func NewReleaseSlotHandler(deps Dependencies) *ReleaseSlotHandler {
	return &ReleaseSlotHandler{base: newBase(deps)}
}

// Handle releases the slot and clears its candidate. An active assignment on
// the slot is cancelled in the same unit of work.
func (h *ReleaseSlotHandler) Handle(ctx context.Context, cmd ReleaseSlotCommand) (*domain.Slot, error) {
	slot, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*domain.Slot, error) {
		slot, err := h.loadSlot(txCtx, cmd.SlotID, cmd.OwnerID)
		if err != nil {
			return nil, err
		}
		if cmd.CandidateID != 0 && slot.CandidateID() != cmd.CandidateID {
			return nil, domain.ErrSlotUnavailable
		}
		if err := h.cancelSlotAssignment(txCtx, slot); err != nil {
			return nil, err
		}
		if err := h.transitionSlot(txCtx, slot, domain.StatusFree); err != nil {
			return nil, err
		}
		return slot, nil
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, slot.OwnerID())
	h.deps.Logger.InfoContext(ctx, "slot released", "slot_id", slot.ID())
	return slot, nil
}
