// Package broker carries dispatch work items between the outbox claimer and
// the delivery pool. Every backend has at-least-once semantics: a message
// that is read but not acknowledged is delivered again.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker closed")

// Message is a delivered work item.
type Message struct {
	ID      string
	Payload []byte
}

// Broker is a work queue with delayed publish and lease-based redelivery.
type Broker interface {
	// Publish enqueues payload, visible after delay.
	Publish(ctx context.Context, payload []byte, delay time.Duration) (string, error)

	// Read returns up to count messages, waiting at most block for the first.
	// An empty result is not an error.
	Read(ctx context.Context, count int, block time.Duration) ([]Message, error)

	// Ack removes a delivered message. Unknown ids are ignored.
	Ack(ctx context.Context, id string) error

	// Close releases the broker's resources.
	Close() error
}

// Backend names a broker implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendRabbitMQ Backend = "rabbitmq"
)

// IsValid reports whether b names a known backend.
func (b Backend) IsValid() bool {
	switch b {
	case BackendMemory, BackendRedis, BackendRabbitMQ:
		return true
	}
	return false
}

// DefaultLeaseTimeout is how long a read message stays invisible before it is
// redelivered.
const DefaultLeaseTimeout = 30 * time.Second
