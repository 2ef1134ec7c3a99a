package commands

import (
	"context"
	"fmt"
	"time"

	notifDomain "github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
)

// RequestRescheduleCommand proposes a new time for an assignment. A zero
// Duration keeps the length of the current slot.
type RequestRescheduleCommand struct {
	AssignmentID   int64
	Token          string
	RequestedStart time.Time
	Duration       time.Duration
	Comment        string
}

// RescheduleDecisionCommand is the owner's answer to a request.
type RescheduleDecisionCommand struct {
	RequestID int64
	OwnerID   int64
}

// RescheduleResult describes the state after a reschedule decision. For an
// approval Assignment and Slot are the new ones, and PreviousSlotID is the
// slot that was given up.
type RescheduleResult struct {
	Request        *domain.RescheduleRequest
	Assignment     *domain.Assignment
	Slot           *domain.Slot
	PreviousSlotID int64
}

// RequestRescheduleHandler records a candidate's reschedule proposal.
type RequestRescheduleHandler struct {
	base
}

// NewRequestRescheduleHandler creates a new RequestRescheduleHandler.
func NewRequestRescheduleHandler(deps Dependencies) *RequestRescheduleHandler {
	return &RequestRescheduleHandler{base: newBase(deps)}
}

// Handle spends the token, moves the assignment to reschedule_requested and
// stores a pending request.
func (h *RequestRescheduleHandler) Handle(ctx context.Context, cmd RequestRescheduleCommand) (*domain.RescheduleRequest, error) {
	req, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*domain.RescheduleRequest, error) {
		if err := h.consumeToken(txCtx, cmd.Token, domain.ActionRequestReschedule, cmd.AssignmentID); err != nil {
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
		duration := cmd.Duration
		if duration == 0 {
			duration = slot.Duration()
		}
		req, err := domain.NewRescheduleRequest(a.ID(), cmd.RequestedStart, duration, cmd.Comment, h.now())
		if err != nil {
			return nil, err
		}

		if err := h.transitionAssignment(txCtx, a, domain.AssignmentRescheduleRequested); err != nil {
			return nil, err
		}
		if err := h.deps.Reschedules.Create(txCtx, req); err != nil {
			return nil, err
		}

		extra := map[string]any{
			"assignment_id":   a.ID(),
			"request_id":      req.ID(),
			"requested_start": req.RequestedStart().Format(time.RFC3339),
			"comment":         req.Comment(),
		}
		if err := h.notify(txCtx, notifDomain.TypeRescheduleRequested, req.ID(), slot, a.CandidateID(), extra); err != nil {
			return nil, err
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.InfoContext(ctx, "reschedule requested",
		"request_id", req.ID(),
		"assignment_id", req.AssignmentID(),
		"requested_start", req.RequestedStart(),
	)
	return req, nil
}

// ApproveRescheduleHandler moves an assignment to the requested time.
type ApproveRescheduleHandler struct {
	base
}

// NewApproveRescheduleHandler creates a new ApproveRescheduleHandler.
func NewApproveRescheduleHandler(deps Dependencies) *ApproveRescheduleHandler {
	return &ApproveRescheduleHandler{base: newBase(deps)}
}

// Handle cancels the old assignment, frees its slot, books a new slot at the
// requested time and confirms a new assignment on it. Any failure rolls the
// whole change back; an overlapping window returns *domain.OverlapError.
func (h *ApproveRescheduleHandler) Handle(ctx context.Context, cmd RescheduleDecisionCommand) (*RescheduleResult, error) {
	result, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*RescheduleResult, error) {
		req, old, err := h.loadPending(txCtx, cmd)
		if err != nil {
			return nil, err
		}
		oldSlot, err := h.loadSlot(txCtx, old.SlotID(), 0)
		if err != nil {
			return nil, err
		}

		if err := h.transitionAssignment(txCtx, old, domain.AssignmentCancelled); err != nil {
			return nil, err
		}
		if oldSlot.Status().IsHeld() && oldSlot.CandidateID() == old.CandidateID() {
			if err := h.transitionSlot(txCtx, oldSlot, domain.StatusFree); err != nil {
				return nil, err
			}
		}

		slot, err := domain.NewSlot(domain.NewSlotParams{
			OwnerID:    oldSlot.OwnerID(),
			LocationID: oldSlot.LocationID(),
			Start:      req.RequestedStart(),
			Duration:   req.Duration(),
			Timezone:   oldSlot.Timezone(),
			Purpose:    oldSlot.Purpose(),
			Capacity:   oldSlot.Capacity(),
			Status:     domain.StatusBooked,
		}, h.now())
		if err != nil {
			return nil, err
		}
		slot.AssignCandidate(old.CandidateID())
		if err := h.deps.Slots.Create(txCtx, slot); err != nil {
			return nil, err
		}

		a, err := domain.NewAssignment(slot.ID(), slot.OwnerID(), old.CandidateID(), domain.AssignmentConfirmed, h.now())
		if err != nil {
			return nil, err
		}
		if err := h.deps.Assignments.Create(txCtx, a); err != nil {
			return nil, err
		}

		if err := h.decide(txCtx, req, req.Approve); err != nil {
			return nil, err
		}

		extra := map[string]any{
			"assignment_id":    a.ID(),
			"request_id":       req.ID(),
			"previous_slot_id": oldSlot.ID(),
		}
		if err := h.notify(txCtx, notifDomain.TypeRescheduleApproved, req.ID(), slot, a.CandidateID(), extra); err != nil {
			return nil, err
		}
		return &RescheduleResult{Request: req, Assignment: a, Slot: slot, PreviousSlotID: oldSlot.ID()}, nil
	})
	if err != nil {
		return nil, err
	}

	h.invalidate(ctx, result.Slot.OwnerID())
	h.deps.Logger.InfoContext(ctx, "reschedule approved",
		"request_id", result.Request.ID(),
		"assignment_id", result.Assignment.ID(),
		"slot_id", result.Slot.ID(),
		"previous_slot_id", result.PreviousSlotID,
	)
	return result, nil
}

// DeclineRescheduleHandler refuses a reschedule proposal.
type DeclineRescheduleHandler struct {
	base
}

// NewDeclineRescheduleHandler creates a new DeclineRescheduleHandler.
func NewDeclineRescheduleHandler(deps Dependencies) *DeclineRescheduleHandler {
	return &DeclineRescheduleHandler{base: newBase(deps)}
}

// Handle declines the request and puts the assignment back on offer.
func (h *DeclineRescheduleHandler) Handle(ctx context.Context, cmd RescheduleDecisionCommand) (*RescheduleResult, error) {
	result, err := sharedApplication.WithUnitOfWorkResult(ctx, h.deps.UoW, func(txCtx context.Context) (*RescheduleResult, error) {
		req, a, err := h.loadPending(txCtx, cmd)
		if err != nil {
			return nil, err
		}
		if err := h.transitionAssignment(txCtx, a, domain.AssignmentOffered); err != nil {
			return nil, err
		}
		if err := h.decide(txCtx, req, req.Decline); err != nil {
			return nil, err
		}
		slot, err := h.loadSlot(txCtx, a.SlotID(), 0)
		if err != nil {
			return nil, err
		}

		extra := map[string]any{
			"assignment_id": a.ID(),
			"request_id":    req.ID(),
		}
		if err := h.notify(txCtx, notifDomain.TypeRescheduleDeclined, req.ID(), slot, a.CandidateID(), extra); err != nil {
			return nil, err
		}
		return &RescheduleResult{Request: req, Assignment: a, Slot: slot}, nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.InfoContext(ctx, "reschedule declined",
		"request_id", result.Request.ID(),
		"assignment_id", result.Assignment.ID(),
	)
	return result, nil
}

func (b base) loadPending(ctx context.Context, cmd RescheduleDecisionCommand) (*domain.RescheduleRequest, *domain.Assignment, error) {
	req, err := b.deps.Reschedules.FindByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, nil, err
	}
	if req == nil {
		return nil, nil, fmt.Errorf("%w: %d", domain.ErrRescheduleNotFound, cmd.RequestID)
	}
	a, err := b.loadAssignment(ctx, req.AssignmentID(), cmd.OwnerID)
	if err != nil {
		return nil, nil, err
	}
	if !req.IsPending() {
		return nil, nil, domain.ErrRescheduleNotPending
	}
	return req, a, nil
}

func (b base) decide(ctx context.Context, req *domain.RescheduleRequest, apply func(time.Time) error) error {
	if err := apply(b.now()); err != nil {
		return err
	}
	ok, err := b.deps.Reschedules.Decide(ctx, req)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrRescheduleNotPending
	}
	return nil
}
