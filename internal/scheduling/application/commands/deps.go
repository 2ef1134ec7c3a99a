package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	notifApp "github.com/felixgeelhaar/slotwise/internal/notifications/application"
	notifDomain "github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
)

// DefaultLockTTL is how long a reservation lock lives when not configured.
const DefaultLockTTL = 30 * time.Second

// Notifier records notification intents inside the caller's unit of work.
type Notifier interface {
	Enqueue(ctx context.Context, req notifApp.EnqueueRequest) (*notifDomain.Notification, error)
}

// Dependencies are the collaborators shared by the scheduling handlers.
type Dependencies struct {
	Slots       domain.SlotRepository
	Assignments domain.AssignmentRepository
	Reschedules domain.RescheduleRequestRepository
	Tokens      domain.ActionTokenStore
	Lock        domain.ReservationLock
	Notifier    Notifier
	// Cache is optional.
	Cache   queries.AvailabilityCache
	UoW     sharedApplication.UnitOfWork
	Clock   sharedDomain.Clock
	LockTTL time.Duration
	Logger  *slog.Logger
}

type base struct {
	deps Dependencies
}

func newBase(deps Dependencies) base {
	if deps.Clock == nil {
		deps.Clock = sharedDomain.SystemClock{}
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = DefaultLockTTL
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return base{deps: deps}
}

func (b base) now() time.Time {
	return b.deps.Clock.Now()
}

// invalidate drops cached availability of the owner. It runs after commit and
// failures only cost freshness.
func (b base) invalidate(ctx context.Context, ownerID int64) {
	if b.deps.Cache == nil {
		return
	}
	if err := b.deps.Cache.Invalidate(context.WithoutCancel(ctx), ownerID); err != nil {
		b.deps.Logger.WarnContext(ctx, "failed to invalidate availability cache",
			"owner_id", ownerID,
			"error", err,
		)
	}
}

func (b base) notify(ctx context.Context, typ notifDomain.Type, subjectID int64, slot *domain.Slot, candidateID int64, extra map[string]any) error {
	payload := slotPayload(slot)
	for k, v := range extra {
		payload[k] = v
	}
	_, err := b.deps.Notifier.Enqueue(ctx, notifApp.EnqueueRequest{
		Type:        typ,
		SubjectID:   subjectID,
		CandidateID: candidateID,
		RecruiterID: slot.OwnerID(),
		Payload:     payload,
	})
	return err
}

// loadSlot returns the slot or ErrSlotNotFound. A non-zero ownerID must match.
func (b base) loadSlot(ctx context.Context, id, ownerID int64) (*domain.Slot, error) {
	slot, err := b.deps.Slots.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrSlotNotFound, id)
	}
	if ownerID != 0 && slot.OwnerID() != ownerID {
		return nil, domain.ErrOwnerMismatch
	}
	return slot, nil
}

func (b base) loadAssignment(ctx context.Context, id, ownerID int64) (*domain.Assignment, error) {
	a, err := b.deps.Assignments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrAssignmentNotFound, id)
	}
	if ownerID != 0 && a.OwnerID() != ownerID {
		return nil, domain.ErrOwnerMismatch
	}
	return a, nil
}

// transitionSlot applies an allowed edge with a conditional update and
// mirrors it on slot. A lost race is a state conflict.
func (b base) transitionSlot(ctx context.Context, slot *domain.Slot, target domain.Status) error {
	if _, err := domain.EnforceTransition(slot.Status(), target); err != nil {
		return err
	}
	now := b.now()
	ok, err := b.deps.Slots.TransitionStatus(ctx, slot.ID(), slot.Status(), target, slot.CandidateID(), now)
	if err != nil {
		return withSlotWindow(err, slot)
	}
	if !ok {
		return fmt.Errorf("slot %d changed concurrently: %w", slot.ID(), domain.ErrSlotUnavailable)
	}
	return slot.TransitionTo(target, now)
}

// withSlotWindow completes an overlap error from the repository with the
// owner and start of slot.
func withSlotWindow(err error, slot *domain.Slot) error {
	var overlap *domain.OverlapError
	if errors.As(err, &overlap) && overlap.OwnerID == 0 {
		overlap.OwnerID = slot.OwnerID()
		overlap.Start = slot.Start().UTC()
	}
	return err
}

func (b base) transitionAssignment(ctx context.Context, a *domain.Assignment, target domain.AssignmentStatus) error {
	if !a.Status().CanTransitionTo(target) {
		return &domain.AssignmentTransitionError{From: a.Status(), To: target}
	}
	now := b.now()
	ok, err := b.deps.Assignments.TransitionStatus(ctx, a.ID(), a.Status(), target, now)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("assignment %d changed concurrently: %w", a.ID(), domain.ErrStateConflict)
	}
	return a.TransitionTo(target, now)
}

func (b base) consumeToken(ctx context.Context, token string, action domain.TokenAction, entityID int64) error {
	if token == "" {
		return domain.ErrInvalidActionToken
	}
	return b.deps.Tokens.Consume(ctx, token, action, entityID)
}

func slotPayload(s *domain.Slot) map[string]any {
	loc, err := time.LoadLocation(s.Timezone())
	if err != nil {
		loc = time.UTC
	}
	return map[string]any{
		"slot_id":      s.ID(),
		"start":        s.Start().In(loc).Format("2006-01-02 15:04 MST"),
		"start_utc":    s.Start().Format(time.RFC3339),
		"duration_min": int(s.Duration() / time.Minute),
		"timezone":     s.Timezone(),
		"location_id":  s.LocationID(),
		"purpose":      string(s.Purpose()),
	}
}
