package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConfig configures a RabbitMQBroker.
type RabbitMQConfig struct {
	URL          string
	Queue        string
	LeaseTimeout time.Duration
	// PollInterval is the pause between empty basic.get calls while blocking.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// amqpChannel is the part of *amqp.Channel the broker uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
	Close() error
}

type rabbitLease struct {
	tag   uint64
	until time.Time
}

// RabbitMQBroker is a Broker on a durable RabbitMQ queue. Delayed messages go
// to a companion queue with a per-message expiration; expired messages are
// dead-lettered into the work queue.
type RabbitMQBroker struct {
	conn         *amqp.Connection
	channel      amqpChannel
	queue        string
	delayQueue   string
	leaseTimeout time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu       sync.Mutex
	inflight map[string]rabbitLease
}

func (cfg RabbitMQConfig) withDefaults() RabbitMQConfig {
	if cfg.Queue == "" {
		cfg.Queue = "slotwise.outbox"
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = DefaultLeaseTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// NewRabbitMQBroker connects and declares the work and delay queues.
func NewRabbitMQBroker(cfg RabbitMQConfig) (*RabbitMQBroker, error) {
	cfg = cfg.withDefaults()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close() // Best-effort cleanup
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	delayQueue := cfg.Queue + ".delay"
	if err := declareQueues(ch, cfg.Queue, delayQueue); err != nil {
		_ = ch.Close()   // Best-effort cleanup
		_ = conn.Close() // Best-effort cleanup
		return nil, err
	}

	cfg.Logger.Info("RabbitMQ broker connected",
		"queue", cfg.Queue,
		"delay_queue", delayQueue,
	)

	b := newRabbitMQBroker(ch, cfg)
	b.conn = conn
	return b, nil
}

func newRabbitMQBroker(ch amqpChannel, cfg RabbitMQConfig) *RabbitMQBroker {
	cfg = cfg.withDefaults()
	return &RabbitMQBroker{
		channel:      ch,
		queue:        cfg.Queue,
		delayQueue:   cfg.Queue + ".delay",
		leaseTimeout: cfg.LeaseTimeout,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		now:          time.Now,
		inflight:     make(map[string]rabbitLease),
	}
}

func declareQueues(ch *amqp.Channel, queue, delayQueue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	_, err = ch.QueueDeclare(
		delayQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare delay queue: %w", err)
	}
	return nil
}

// Publish sends a persistent message, through the delay queue when delay > 0.
func (b *RabbitMQBroker) Publish(ctx context.Context, payload []byte, delay time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    b.now(),
		Body:         payload,
	}
	routingKey := b.queue
	if delay > 0 {
		routingKey = b.delayQueue
		msg.Expiration = strconv.FormatInt(max(delay.Milliseconds(), 1), 10)
	}

	err := b.channel.PublishWithContext(ctx,
		"",         // default exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		msg,
	)
	if err != nil {
		b.logger.Error("failed to publish message",
			"queue", routingKey,
			"error", err,
		)
		return "", err
	}
	return id, nil
}

// Read polls the work queue with basic.get until count messages arrive or
// block elapses. Leases that ran out are returned to the queue first.
func (b *RabbitMQBroker) Read(ctx context.Context, count int, block time.Duration) ([]Message, error) {
	if count <= 0 {
		return nil, nil
	}
	deadline := b.now().Add(block)

	var msgs []Message
	for {
		batch, err := b.get(count - len(msgs))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, batch...)
		if len(msgs) >= count || (len(msgs) > 0 && len(batch) == 0) {
			return msgs, nil
		}
		if !b.now().Before(deadline) {
			return msgs, nil
		}

		timer := time.NewTimer(b.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return msgs, ctx.Err()
		case <-timer.C:
		}
	}
}

func (b *RabbitMQBroker) get(count int) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for id, lease := range b.inflight {
		if !lease.until.After(now) {
			if err := b.channel.Nack(lease.tag, false, true); err != nil {
				return nil, fmt.Errorf("failed to requeue expired message: %w", err)
			}
			delete(b.inflight, id)
		}
	}

	var msgs []Message
	for len(msgs) < count {
		d, ok, err := b.channel.Get(b.queue, false)
		if err != nil {
			return nil, fmt.Errorf("failed to get message: %w", err)
		}
		if !ok {
			break
		}
		id := strconv.FormatUint(d.DeliveryTag, 10)
		b.inflight[id] = rabbitLease{tag: d.DeliveryTag, until: now.Add(b.leaseTimeout)}
		msgs = append(msgs, Message{ID: id, Payload: d.Body})
	}
	return msgs, nil
}

// Ack acknowledges a delivery by its tag.
func (b *RabbitMQBroker) Ack(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	lease, ok := b.inflight[id]
	if !ok {
		return nil
	}
	delete(b.inflight, id)
	if err := b.channel.Ack(lease.tag, false); err != nil {
		return fmt.Errorf("failed to ack %s: %w", id, err)
	}
	return nil
}

// Close closes the channel and connection. Unacknowledged deliveries are
// redelivered by the server.
func (b *RabbitMQBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.channel != nil {
		if err := b.channel.Close(); err != nil {
			b.logger.Warn("error closing channel", "error", err)
		}
	}

	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			return err
		}
	}

	b.logger.Info("RabbitMQ broker closed")
	return nil
}
