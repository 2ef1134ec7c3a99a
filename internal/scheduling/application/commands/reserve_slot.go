package commands

import (
	"context"
	"errors"
	"fmt"

	notifDomain "github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
	"github.com/google/uuid"
)

// ReserveSlotCommand asks to hold a slot for a candidate. ExpectedOwnerID and
// ExpectedLocationID are optional guards against stale links.
type ReserveSlotCommand struct {
	SlotID             int64
	CandidateID        int64
	ExpectedOwnerID    int64
	ExpectedLocationID int64
	Purpose            domain.Purpose
	AllowReplace       bool
}

func (c ReserveSlotCommand) validate() error {
	if c.SlotID <= 0 {
		return &domain.ValidationError{Field: "slot_id", Reason: "must be positive"}
	}
	if c.CandidateID <= 0 {
		return &domain.ValidationError{Field: "candidate_id", Reason: "must be positive"}
	}
	if c.Purpose != "" && !c.Purpose.IsValid() {
		return &domain.ValidationError{Field: "purpose", Reason: "unknown purpose " + string(c.Purpose)}
	}
	return nil
}

// ReserveSlotHandler places FREE slots on hold. Expected outcomes are reported
// through domain.ReserveResult; a returned error is an infrastructure fault or
// invalid input.
type ReserveSlotHandler struct {
	base
}

// NewReserveSlotHandler creates a new ReserveSlotHandler.
func NewReserveSlotHandler(deps Dependencies) *ReserveSlotHandler {
	return &ReserveSlotHandler{base: newBase(deps)}
}

// Handle executes the reservation.
func (h *ReserveSlotHandler) Handle(ctx context.Context, cmd ReserveSlotCommand) (domain.ReserveResult, error) {
	if err := cmd.validate(); err != nil {
		return domain.ReserveResult{}, err
	}

	slot, err := h.deps.Slots.FindByID(ctx, cmd.SlotID)
	if err != nil {
		return domain.ReserveResult{}, err
	}
	if slot == nil ||
		(cmd.ExpectedOwnerID != 0 && slot.OwnerID() != cmd.ExpectedOwnerID) ||
		(cmd.ExpectedLocationID != 0 && slot.LocationID() != cmd.ExpectedLocationID) {
		return domain.ReserveResult{Outcome: domain.ReserveNotFound}, nil
	}
	purpose := cmd.Purpose
	if purpose == "" {
		purpose = slot.Purpose()
	}

	key := domain.LockKey{CandidateID: cmd.CandidateID, OwnerID: slot.OwnerID(), Date: slot.LocalDate()}
	token := uuid.NewString()
	acquired, err := h.deps.Lock.Acquire(ctx, key, token, h.deps.LockTTL)
	if err != nil {
		if relErr := h.deps.Lock.Release(context.WithoutCancel(ctx), key, token); relErr != nil {
			h.deps.Logger.WarnContext(ctx, "failed to release reservation lock",
				"lock", key.String(),
				"error", relErr,
			)
		}
		return domain.ReserveResult{}, fmt.Errorf("failed to acquire reservation lock: %w", err)
	}
	if !acquired {
		h.deps.Logger.InfoContext(ctx, "reservation already in progress",
			"slot_id", cmd.SlotID,
			"candidate_id", cmd.CandidateID,
		)
		return domain.ReserveResult{Outcome: domain.ReserveDuplicateCandidate}, nil
	}
	defer func() {
		if relErr := h.deps.Lock.Release(context.WithoutCancel(ctx), key, token); relErr != nil {
			h.deps.Logger.WarnContext(ctx, "failed to release reservation lock",
				"lock", key.String(),
				"error", relErr,
			)
		}
	}()

	result, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (domain.ReserveResult, error) {
		return h.reserve(txCtx, cmd, slot, purpose)
	})
	var aborted errReserveAborted
	if errors.As(err, &aborted) {
		result, err = domain.ReserveResult{Outcome: aborted.outcome}, nil
	}
	if err != nil {
		return domain.ReserveResult{}, err
	}

	if result.Reserved() {
		h.invalidate(ctx, slot.OwnerID())
	}
	h.deps.Logger.InfoContext(ctx, "slot reservation attempted",
		"slot_id", cmd.SlotID,
		"candidate_id", cmd.CandidateID,
		"outcome", string(result.Outcome),
		"replaced_slot_id", result.ReplacedSlotID,
	)
	return result, nil
}

func (h *ReserveSlotHandler) reserve(ctx context.Context, cmd ReserveSlotCommand, target *domain.Slot, purpose domain.Purpose) (domain.ReserveResult, error) {
	var result domain.ReserveResult

	hold, err := h.deps.Slots.FindActiveHold(ctx, cmd.CandidateID, target.OwnerID(), purpose)
	if err != nil {
		return result, err
	}
	if hold != nil {
		if hold.ID() == cmd.SlotID {
			return domain.ReserveResult{Outcome: domain.ReserveReserved, Slot: hold}, nil
		}
		if !cmd.AllowReplace {
			return domain.ReserveResult{Outcome: domain.ReserveDuplicateCandidate}, nil
		}
		// An assignment on the old hold goes with it.
		if err := h.cancelSlotAssignment(ctx, hold); err != nil {
			return result, err
		}
		if err := h.transitionSlot(ctx, hold, domain.StatusFree); err != nil {
			return result, err
		}
		result.ReplacedSlotID = hold.ID()
	}

	ok, err := h.deps.Slots.Reserve(ctx, cmd.SlotID, cmd.CandidateID, h.now())
	if err != nil {
		return domain.ReserveResult{}, withSlotWindow(err, target)
	}
	if !ok {
		current, err := h.deps.Slots.FindByID(ctx, cmd.SlotID)
		if err != nil {
			return domain.ReserveResult{}, err
		}
		// Abort so a replaced hold is restored by the rollback.
		if current == nil {
			return domain.ReserveResult{}, errReserveAborted{outcome: domain.ReserveNotFound}
		}
		return domain.ReserveResult{}, errReserveAborted{outcome: domain.ReserveSlotTaken}
	}

	slot, err := h.deps.Slots.FindByID(ctx, cmd.SlotID)
	if err != nil {
		return domain.ReserveResult{}, err
	}
	if slot == nil {
		return domain.ReserveResult{}, fmt.Errorf("%w: %d", domain.ErrSlotNotFound, cmd.SlotID)
	}
	if err := h.notify(ctx, notifDomain.TypeSlotReserved, slot.ID(), slot, cmd.CandidateID, nil); err != nil {
		return domain.ReserveResult{}, err
	}

	result.Outcome = domain.ReserveReserved
	result.Slot = slot
	return result, nil
}

// errReserveAborted rolls back the unit of work for an expected outcome.
type errReserveAborted struct {
	outcome domain.ReserveOutcome
}

func (e errReserveAborted) Error() string { return "reservation aborted: " + string(e.outcome) }
