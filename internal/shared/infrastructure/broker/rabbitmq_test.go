package broker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAMQP keeps a single queue in memory and records acks and nacks.
type fakeAMQP struct {
	queue     []amqp.Delivery
	bodies    map[uint64]string
	nextTag   uint64
	published []amqp.Publishing
	keys      []string
	acked     []uint64
	nacked    []uint64
	getErr    error
	closed    bool
}

func (f *fakeAMQP) push(body string, redelivered bool) {
	f.nextTag++
	if f.bodies == nil {
		f.bodies = make(map[uint64]string)
	}
	f.bodies[f.nextTag] = body
	f.queue = append(f.queue, amqp.Delivery{DeliveryTag: f.nextTag, Body: []byte(body), Redelivered: redelivered})
}

func (f *fakeAMQP) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.published = append(f.published, msg)
	f.keys = append(f.keys, key)
	f.push(string(msg.Body), false)
	return nil
}

func (f *fakeAMQP) Get(string, bool) (amqp.Delivery, bool, error) {
	if f.getErr != nil {
		return amqp.Delivery{}, false, f.getErr
	}
	if len(f.queue) == 0 {
		return amqp.Delivery{}, false, nil
	}
	d := f.queue[0]
	f.queue = f.queue[1:]
	return d, true, nil
}

func (f *fakeAMQP) Ack(tag uint64, _ bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

// Nack with requeue puts the body back under a fresh tag, as the server does.
func (f *fakeAMQP) Nack(tag uint64, _, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	if requeue {
		f.push(f.bodies[tag], true)
	}
	return nil
}

func (f *fakeAMQP) Close() error {
	f.closed = true
	return nil
}

func newTestRabbit(t *testing.T) (*RabbitMQBroker, *fakeAMQP, *time.Time) {
	t.Helper()
	ch := &fakeAMQP{}
	b := newRabbitMQBroker(ch, RabbitMQConfig{
		Queue:        "outbox",
		LeaseTimeout: time.Minute,
		PollInterval: time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	clock := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	return b, ch, &clock
}

func TestRabbitMQBroker_PublishRoutesDelayedMessages(t *testing.T) {
	b, ch, _ := newTestRabbit(t)
	ctx := context.Background()

	id, err := b.Publish(ctx, []byte(`{"notification_id":1}`), 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, err = b.Publish(ctx, []byte(`{"notification_id":2}`), 1500*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, []string{"outbox", "outbox.delay"}, ch.keys)
	assert.Empty(t, ch.published[0].Expiration)
	assert.Equal(t, "1500", ch.published[1].Expiration)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, id, ch.published[0].MessageId)
}

func TestRabbitMQBroker_AckedMessageIsNotRequeued(t *testing.T) {
	b, ch, clock := newTestRabbit(t)
	ctx := context.Background()
	_, err := b.Publish(ctx, []byte("a"), 0)
	require.NoError(t, err)

	msgs, err := b.Read(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NoError(t, b.Ack(ctx, msgs[0].ID))
	require.NoError(t, b.Ack(ctx, msgs[0].ID), "unknown ids are ignored")
	assert.Equal(t, []uint64{1}, ch.acked)

	*clock = clock.Add(2 * time.Minute)
	msgs, err = b.Read(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, ch.nacked)
}

func TestRabbitMQBroker_ExpiredLeaseIsRequeued(t *testing.T) {
	b, ch, clock := newTestRabbit(t)
	ctx := context.Background()
	_, err := b.Publish(ctx, []byte("a"), 0)
	require.NoError(t, err)

	first, err := b.Read(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Still leased.
	*clock = clock.Add(30 * time.Second)
	msgs, err := b.Read(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, ch.nacked)

	*clock = clock.Add(time.Minute)
	again, err := b.Read(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, []uint64{1}, ch.nacked)
	assert.Equal(t, "a", string(again[0].Payload))
	assert.NotEqual(t, first[0].ID, again[0].ID)

	// Acking the stale delivery is a no-op; the live one is acked by its tag.
	require.NoError(t, b.Ack(ctx, first[0].ID))
	require.NoError(t, b.Ack(ctx, again[0].ID))
	assert.Equal(t, []uint64{2}, ch.acked)
}

func TestRabbitMQBroker_ReadReturnsChannelErrors(t *testing.T) {
	b, ch, _ := newTestRabbit(t)
	ch.getErr = errors.New("channel closed")

	_, err := b.Read(context.Background(), 1, 0)
	assert.ErrorContains(t, err, "channel closed")
}

func TestRabbitMQBroker_Close(t *testing.T) {
	b, ch, _ := newTestRabbit(t)
	require.NoError(t, b.Close())
	assert.True(t, ch.closed)
}
