package broker

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	seq        int64
	id         string
	payload    []byte
	dueAt      time.Time
	leaseUntil time.Time
}

// MemoryBroker is an in-process Broker for single-process deployments and
// tests.
type MemoryBroker struct {
	mu           sync.Mutex
	seq          int64
	queue        []*memoryEntry
	inflight     map[string]*memoryEntry
	leaseTimeout time.Duration
	notify       chan struct{}
	closed       bool
	now          func() time.Time
}

// NewMemoryBroker creates a MemoryBroker. A zero leaseTimeout uses
// DefaultLeaseTimeout.
func NewMemoryBroker(leaseTimeout time.Duration) *MemoryBroker {
	if leaseTimeout <= 0 {
		leaseTimeout = DefaultLeaseTimeout
	}
	return &MemoryBroker{
		inflight:     make(map[string]*memoryEntry),
		leaseTimeout: leaseTimeout,
		notify:       make(chan struct{}, 1),
		now:          time.Now,
	}
}

// Publish enqueues payload.
func (b *MemoryBroker) Publish(_ context.Context, payload []byte, delay time.Duration) (string, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", ErrClosed
	}
	b.seq++
	e := &memoryEntry{
		seq:     b.seq,
		id:      strconv.FormatInt(b.seq, 10),
		payload: append([]byte(nil), payload...),
		dueAt:   b.now().Add(max(delay, 0)),
	}
	b.pushLocked(e)
	b.wakeLocked()
	b.mu.Unlock()

	return e.id, nil
}

// Read returns due messages and leases them for the lease timeout.
func (b *MemoryBroker) Read(ctx context.Context, count int, block time.Duration) ([]Message, error) {
	if count <= 0 {
		return nil, nil
	}
	deadline := b.now().Add(block)

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		now := b.now()
		msgs, next := b.takeLocked(count, now)
		b.mu.Unlock()

		if len(msgs) > 0 {
			return msgs, nil
		}
		wait := deadline.Sub(now)
		if wait <= 0 {
			return nil, nil
		}
		if !next.IsZero() && next.Sub(now) < wait {
			wait = max(next.Sub(now), time.Millisecond)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-b.notify:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// Ack forgets a leased message.
func (b *MemoryBroker) Ack(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	delete(b.inflight, id)
	return nil
}

// Close drops every queued message and wakes blocked readers.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.queue = nil
		b.inflight = nil
		close(b.notify)
	}
	return nil
}

// Len returns the number of queued and leased messages.
func (b *MemoryBroker) Len() (queued, leased int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue), len(b.inflight)
}

func (b *MemoryBroker) wakeLocked() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *MemoryBroker) pushLocked(e *memoryEntry) {
	b.queue = append(b.queue, e)
	sort.SliceStable(b.queue, func(i, j int) bool {
		if b.queue[i].dueAt.Equal(b.queue[j].dueAt) {
			return b.queue[i].seq < b.queue[j].seq
		}
		return b.queue[i].dueAt.Before(b.queue[j].dueAt)
	})
}

// takeLocked requeues expired leases, then leases up to count due entries.
// next is the earliest time more work can become available.
func (b *MemoryBroker) takeLocked(count int, now time.Time) ([]Message, time.Time) {
	for id, e := range b.inflight {
		if !e.leaseUntil.After(now) {
			delete(b.inflight, id)
			e.leaseUntil = time.Time{}
			e.dueAt = now
			b.pushLocked(e)
		}
	}

	var msgs []Message
	for len(b.queue) > 0 && len(msgs) < count && !b.queue[0].dueAt.After(now) {
		e := b.queue[0]
		b.queue = b.queue[1:]
		e.leaseUntil = now.Add(b.leaseTimeout)
		b.inflight[e.id] = e
		msgs = append(msgs, Message{ID: e.id, Payload: e.payload})
	}

	var next time.Time
	if len(b.queue) > 0 {
		next = b.queue[0].dueAt
	}
	for _, e := range b.inflight {
		if next.IsZero() || e.leaseUntil.Before(next) {
			next = e.leaseUntil
		}
	}
	return msgs, next
}
