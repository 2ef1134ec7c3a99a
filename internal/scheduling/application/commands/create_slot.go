package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
)

// CreateSlotCommand contains the data needed to publish a slot.
type CreateSlotCommand struct {
	OwnerID    int64
	LocationID int64
	Start      time.Time
	Duration   time.Duration
	Timezone   string
	Purpose    domain.Purpose
	Capacity   int
}

// CreateSlotHandler inserts FREE slots.
type CreateSlotHandler struct {
	base
}

// NewCreateSlotHandler creates a new CreateSlotHandler.
func NewCreateSlotHandler(deps Dependencies) *CreateSlotHandler {
	return &CreateSlotHandler{base: newBase(deps)}
}

// Handle validates the command and stores the slot. An overlapping window
// returns *domain.OverlapError.
func (h *CreateSlotHandler) Handle(ctx context.Context, cmd CreateSlotCommand) (*domain.Slot, error) {
	slot, err := domain.NewSlot(domain.NewSlotParams{
		OwnerID:    cmd.OwnerID,
		LocationID: cmd.LocationID,
		Start:      cmd.Start,
		Duration:   cmd.Duration,
		Timezone:   cmd.Timezone,
		Purpose:    cmd.Purpose,
		Capacity:   cmd.Capacity,
	}, h.now())
	if err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.deps.UoW, func(txCtx context.Context) error {
		return h.deps.Slots.Create(txCtx, slot)
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, slot.OwnerID())
	h.deps.Logger.InfoContext(ctx, "slot created",
		"slot_id", slot.ID(),
		"owner_id", slot.OwnerID(),
		"start", slot.Start(),
	)
	return slot, nil
}
