package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

// EnqueueRequest describes one logical notification.
type EnqueueRequest struct {
	Type        domain.Type
	SubjectID   int64
	CandidateID int64
	RecruiterID int64
	Payload     map[string]any
}

// Key returns the dedup key of the request.
func (r EnqueueRequest) Key() domain.Key {
	return domain.Key{Type: r.Type, SubjectID: r.SubjectID, CandidateID: r.CandidateID}
}

// Writer records notification intents in the outbox. It joins the unit of
// work carried by ctx, so the intent commits or rolls back together with the
// state change that caused it.
type Writer struct {
	repo   domain.OutboxRepository
	uow    sharedApplication.UnitOfWork
	clock  sharedDomain.Clock
	logger *slog.Logger
}

// NewWriter creates a new outbox writer.
func NewWriter(repo domain.OutboxRepository, uow sharedApplication.UnitOfWork, clock sharedDomain.Clock, logger *slog.Logger) *Writer {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{repo: repo, uow: uow, clock: clock, logger: logger}
}

// Enqueue inserts the notification for req's key, or returns the existing row.
// A pending row absorbs the new payload. Sent and failed rows are returned as
// they are: a delivered notification is never queued again.
func (w *Writer) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Notification, error) {
	payload, err := encodePayload(req.Payload)
	if err != nil {
		return nil, err
	}
	correlationID := observability.CorrelationIDFromContext(ctx)

	return sharedApplication.WithUnitOfWorkResult(ctx, w.uow, func(txCtx context.Context) (*domain.Notification, error) {
		now := w.clock.Now()
		n, err := domain.NewNotification(req.Key(), req.RecruiterID, payload, correlationID, now)
		if err != nil {
			return nil, err
		}

		inserted, err := w.repo.InsertIfAbsent(txCtx, n)
		if err != nil {
			return nil, err
		}
		if inserted {
			return n, nil
		}

		existing, err := w.repo.FindByKey(txCtx, req.Key())
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: %s/%d/%d", domain.ErrNotificationNotFound, req.Type, req.SubjectID, req.CandidateID)
		}
		if !existing.IsPending() {
			w.logger.DebugContext(ctx, "notification already settled",
				"notification_id", existing.ID(),
				"type", string(existing.Type()),
				"status", string(existing.Status()),
			)
			return existing, nil
		}

		existing.Coalesce(req.RecruiterID, payload, correlationID, now)
		updated, err := w.repo.UpdatePending(txCtx, existing)
		if err != nil {
			return nil, err
		}
		if !updated {
			// Delivered between the read and the update.
			return w.repo.FindByID(txCtx, existing.ID())
		}
		return existing, nil
	})
}

func encodePayload(p map[string]any) (json.RawMessage, error) {
	if len(p) == 0 {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", domain.ErrInvalidNotification, err)
	}
	return b, nil
}
