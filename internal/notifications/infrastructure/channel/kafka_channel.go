package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
)

// MessageWriter is the part of *kafka.Writer the channel uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a KafkaChannel.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaChannel hands deliveries to a Kafka topic consumed by the chat
// transport. Messages are keyed by recipient so one recipient's messages stay
// ordered.
type KafkaChannel struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

type kafkaDelivery struct {
	Recipient     string `json:"recipient"`
	Type          string `json:"type"`
	Text          string `json:"text"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewKafkaChannel creates a KafkaChannel backed by a *kafka.Writer.
func NewKafkaChannel(cfg KafkaConfig, logger *slog.Logger) (*KafkaChannel, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka channel: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka channel: no topic configured")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
		// Retries are owned by the outbox.
		MaxAttempts: 1,
	}
	return NewKafkaChannelWithWriter(w, cfg.Topic, logger), nil
}

// NewKafkaChannelWithWriter creates a KafkaChannel over an existing writer.
func NewKafkaChannelWithWriter(w MessageWriter, topic string, logger *slog.Logger) *KafkaChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaChannel{writer: w, topic: topic, logger: logger}
}

// Send writes one message and classifies the outcome.
func (c *KafkaChannel) Send(ctx context.Context, d domain.Delivery) domain.DeliveryResult {
	if d.Recipient == "" {
		return domain.Fatal(ErrNoRecipient)
	}

	value, err := json.Marshal(kafkaDelivery{
		Recipient:     d.Recipient,
		Type:          string(d.Type),
		Text:          d.Text,
		CorrelationID: d.CorrelationID,
	})
	if err != nil {
		return domain.Fatal(fmt.Errorf("failed to encode delivery: %w", err))
	}

	msg := kafka.Message{
		Key:   []byte(d.Recipient),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(d.Type)},
			{Key: "correlation_id", Value: []byte(d.CorrelationID)},
		},
	}
	if err := c.writer.WriteMessages(ctx, msg); err != nil {
		c.logger.WarnContext(ctx, "kafka delivery failed",
			"topic", c.topic,
			"recipient", d.Recipient,
			"error", err,
		)
		if IsRetryable(err) {
			return domain.Retryable(err)
		}
		return domain.Fatal(err)
	}
	return domain.OK()
}

// Close closes the writer.
func (c *KafkaChannel) Close() error {
	return c.writer.Close()
}

// IsRetryable reports whether a transport error is worth another attempt:
// timeouts, temporary broker errors and connection failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		for _, e := range writeErrs {
			if e != nil && !IsRetryable(e) {
				return false
			}
		}
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary() || kerr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var temp interface {
		Temporary() bool
	}
	if errors.As(err, &temp) && temp.Temporary() {
		return true
	}
	var timeout interface {
		Timeout() bool
	}
	return errors.As(err, &timeout) && timeout.Timeout()
}
