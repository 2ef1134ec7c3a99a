// Package channel contains the delivery transports for notifications.
package channel

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
)

// ErrNoRecipient is a fatal delivery error.
var ErrNoRecipient = errors.New("notification has no recipient")

// LogChannel writes deliveries to the log. It is the development transport.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a LogChannel.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

// Send logs d and always succeeds for an addressed delivery.
func (c *LogChannel) Send(ctx context.Context, d domain.Delivery) domain.DeliveryResult {
	if d.Recipient == "" {
		return domain.Fatal(ErrNoRecipient)
	}
	c.logger.InfoContext(ctx, "notification delivered",
		"recipient", d.Recipient,
		"type", string(d.Type),
		"correlation_id", d.CorrelationID,
		"text", d.Text,
	)
	return domain.OK()
}
