package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrStateConflict     = errors.New("state conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOverlap           = errors.New("slot overlaps an existing slot")
	ErrUniqueness        = errors.New("uniqueness violated")
	ErrNotFound          = errors.New("not found")

	ErrSlotNotFound            = fmt.Errorf("slot %w", ErrNotFound)
	ErrAssignmentNotFound      = fmt.Errorf("assignment %w", ErrNotFound)
	ErrRescheduleNotFound      = fmt.Errorf("reschedule request %w", ErrNotFound)
	ErrActiveAssignmentExists  = fmt.Errorf("candidate already has an active assignment: %w", ErrUniqueness)
	ErrPendingRescheduleExists = fmt.Errorf("assignment already has a pending reschedule request: %w", ErrUniqueness)
	ErrSlotUnavailable         = fmt.Errorf("slot no longer available: %w", ErrStateConflict)
	ErrRescheduleNotPending    = fmt.Errorf("reschedule request already decided: %w", ErrStateConflict)
	ErrOwnerMismatch           = fmt.Errorf("owner does not match: %w", ErrNotFound)
	ErrInvalidActionToken      = errors.New("action token is invalid, expired or already used")
)

// ValidationError reports malformed input rejected before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError reports a slot status edge outside the state machine.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid slot transition %s -> %s", displayStatus(e.From), displayStatus(e.To))
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition || target == ErrStateConflict
}

// AssignmentTransitionError reports an assignment status edge outside the
// negotiation lifecycle.
type AssignmentTransitionError struct {
	From AssignmentStatus
	To   AssignmentStatus
}

func (e *AssignmentTransitionError) Error() string {
	return fmt.Sprintf("invalid assignment transition %s -> %s", e.From, e.To)
}

func (e *AssignmentTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition || target == ErrStateConflict
}

// OverlapError is returned when storage rejects a slot whose window overlaps
// another live slot of the same owner.
type OverlapError struct {
	OwnerID int64
	Start   time.Time
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("slot for owner %d at %s overlaps an existing slot", e.OwnerID, e.Start.UTC().Format(time.RFC3339))
}

func (e *OverlapError) Is(target error) bool { return target == ErrOverlap || target == ErrStateConflict }

func displayStatus(s Status) string {
	if s == "" {
		return "<none>"
	}
	return string(s)
}
