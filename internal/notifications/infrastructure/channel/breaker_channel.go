package channel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
)

// BreakerConfig configures a BreakerChannel.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

// BreakerChannel stops calling a failing transport for a while. Only
// retryable outcomes count as failures; a fatal outcome is about one message,
// not the transport. While the circuit is open every send is retryable.
type BreakerChannel struct {
	next    domain.Channel
	breaker *gobreaker.CircuitBreaker[domain.DeliveryResult]
	logger  *slog.Logger
}

// NewBreakerChannel wraps next.
func NewBreakerChannel(next domain.Channel, cfg BreakerConfig, logger *slog.Logger) *BreakerChannel {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "delivery"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerChannel{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[domain.DeliveryResult](settings),
		logger:  logger,
	}
}

// Send delivers through the circuit breaker.
func (c *BreakerChannel) Send(ctx context.Context, d domain.Delivery) domain.DeliveryResult {
	res, err := c.breaker.Execute(func() (domain.DeliveryResult, error) {
		r := c.next.Send(ctx, d)
		if r.Outcome == domain.OutcomeRetryable {
			return r, r.Err
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Retryable(err)
	}
	return res
}

// State returns the breaker state for health reporting.
func (c *BreakerChannel) State() string {
	return c.breaker.State().String()
}
