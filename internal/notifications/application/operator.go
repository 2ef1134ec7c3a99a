package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
)

// Operator exposes the manual outbox actions.
type Operator struct {
	repo   domain.OutboxRepository
	clock  sharedDomain.Clock
	logger *slog.Logger
}

// NewOperator creates a new Operator.
func NewOperator(repo domain.OutboxRepository, clock sharedDomain.Clock, logger *slog.Logger) *Operator {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Operator{repo: repo, clock: clock, logger: logger}
}

// ListFailed returns failed notifications, newest first.
func (o *Operator) ListFailed(ctx context.Context, limit int) ([]*domain.Notification, error) {
	return o.repo.ListFailed(ctx, limit)
}

// RetryFailed re-arms a failed notification with a fresh attempt budget.
func (o *Operator) RetryFailed(ctx context.Context, id int64) (*domain.Notification, error) {
	n, err := o.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotificationNotFound, id)
	}

	ok, err := o.repo.ResetFailed(ctx, id, o.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: notification %d is %s", domain.ErrNotFailed, id, n.Status())
	}

	o.logger.InfoContext(ctx, "notification re-armed",
		"notification_id", id,
		"type", string(n.Type()),
		"previous_attempts", n.Attempts(),
	)
	return o.repo.FindByID(ctx, id)
}

// Stats returns outbox row counts per status.
func (o *Operator) Stats(ctx context.Context) (map[domain.Status]int64, error) {
	return o.repo.CountByStatus(ctx)
}
