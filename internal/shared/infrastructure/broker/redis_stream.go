package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// RedisStreamConfig configures a RedisStreamBroker.
type RedisStreamConfig struct {
	Stream       string
	Group        string
	Consumer     string
	LeaseTimeout time.Duration
	Logger       *slog.Logger
}

// RedisStreamBroker is a Broker on a Redis stream and consumer group. Delayed
// messages wait in a sorted set scored by due time and are moved onto the
// stream by the first Read that finds them due. Entries left pending longer
// than the lease are reclaimed with XAUTOCLAIM.
type RedisStreamBroker struct {
	client       redis.UniversalClient
	stream       string
	group        string
	consumer     string
	delayed      string
	leaseTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewRedisStreamBroker creates the consumer group if needed and returns a
// broker reading as cfg.Consumer.
func NewRedisStreamBroker(ctx context.Context, client redis.UniversalClient, cfg RedisStreamConfig) (*RedisStreamBroker, error) {
	if cfg.Stream == "" {
		cfg.Stream = "slotwise:outbox"
	}
	if cfg.Group == "" {
		cfg.Group = "dispatch"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = uuid.NewString()
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = DefaultLeaseTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	cfg.Logger.Info("redis stream broker ready",
		"stream", cfg.Stream,
		"group", cfg.Group,
		"consumer", cfg.Consumer,
	)

	return &RedisStreamBroker{
		client:       client,
		stream:       cfg.Stream,
		group:        cfg.Group,
		consumer:     cfg.Consumer,
		delayed:      cfg.Stream + ":delayed",
		leaseTimeout: cfg.LeaseTimeout,
		logger:       cfg.Logger,
		now:          time.Now,
	}, nil
}

// Publish appends payload to the stream, or parks it in the delay set.
// Delayed messages get a provisional id; the stream id is assigned when they
// become due.
func (b *RedisStreamBroker) Publish(ctx context.Context, payload []byte, delay time.Duration) (string, error) {
	if delay <= 0 {
		return b.add(ctx, payload)
	}

	id := uuid.NewString()
	due := b.now().Add(delay).UnixMilli()
	err := b.client.ZAdd(ctx, b.delayed, redis.Z{
		Score:  float64(due),
		Member: id + "|" + string(payload),
	}).Err()
	if err != nil {
		return "", fmt.Errorf("failed to schedule message: %w", err)
	}
	return id, nil
}

// Read promotes due delayed messages, reclaims expired leases, then reads new
// entries for this consumer.
func (b *RedisStreamBroker) Read(ctx context.Context, count int, block time.Duration) ([]Message, error) {
	if count <= 0 {
		return nil, nil
	}
	if err := b.promote(ctx, count); err != nil {
		return nil, err
	}

	claimed, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   b.stream,
		Group:    b.group,
		Consumer: b.consumer,
		MinIdle:  b.leaseTimeout,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to reclaim messages: %w", err)
	}
	msgs := b.decode(claimed)
	if len(msgs) >= count {
		return msgs, nil
	}

	args := &redis.XReadGroupArgs{
		Group:    b.group,
		Consumer: b.consumer,
		Streams:  []string{b.stream, ">"},
		Count:    int64(count - len(msgs)),
		Block:    -1,
	}
	if block > 0 && len(msgs) == 0 {
		args.Block = block
	}
	streams, err := b.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return msgs, nil
		}
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	for _, s := range streams {
		msgs = append(msgs, b.decode(s.Messages)...)
	}
	return msgs, nil
}

// Ack acknowledges and deletes the entry.
func (b *RedisStreamBroker) Ack(ctx context.Context, id string) error {
	pipe := b.client.TxPipeline()
	pipe.XAck(ctx, b.stream, b.group, id)
	pipe.XDel(ctx, b.stream, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack %s: %w", id, err)
	}
	return nil
}

// Close does not close the shared client.
func (b *RedisStreamBroker) Close() error {
	return nil
}

func (b *RedisStreamBroker) add(ctx context.Context, payload []byte) (string, error) {
	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{payloadField: payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}
	return id, nil
}

// promote moves up to limit due delayed messages onto the stream. ZREM decides
// which of several concurrent readers moves a given member.
func (b *RedisStreamBroker) promote(ctx context.Context, limit int) error {
	members, err := b.client.ZRangeByScore(ctx, b.delayed, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(b.now().UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to load delayed messages: %w", err)
	}

	for _, member := range members {
		removed, err := b.client.ZRem(ctx, b.delayed, member).Result()
		if err != nil {
			return fmt.Errorf("failed to promote delayed message: %w", err)
		}
		if removed == 0 {
			continue
		}
		_, payload, _ := strings.Cut(member, "|")
		if _, err := b.add(ctx, []byte(payload)); err != nil {
			// Put it back so it is not lost.
			_ = b.client.ZAdd(ctx, b.delayed, redis.Z{Score: float64(b.now().UnixMilli()), Member: member}).Err()
			return err
		}
	}
	return nil
}

func (b *RedisStreamBroker) decode(entries []redis.XMessage) []Message {
	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		raw, ok := e.Values[payloadField].(string)
		if !ok {
			// Deleted entries come back from XAUTOCLAIM without values.
			b.logger.Warn("dropping stream entry without payload", "id", e.ID)
			_ = b.client.XAck(context.Background(), b.stream, b.group, e.ID).Err()
			continue
		}
		msgs = append(msgs, Message{ID: e.ID, Payload: []byte(raw)})
	}
	return msgs
}
