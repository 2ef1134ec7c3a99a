// Package dispatch delivers outbox notifications. Each cycle claims due rows,
// hands their ids to the broker, and processes what the broker returns on a
// bounded, rate limited pool.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	sharedApplication "github.com/felixgeelhaar/slotwise/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/broker"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

// Dependencies are the collaborators of a Dispatcher.
type Dependencies struct {
	Outbox   domain.OutboxRepository
	Logs     domain.LogRepository
	UoW      sharedApplication.UnitOfWork
	Broker   broker.Broker
	Renderer domain.Renderer
	Channel  domain.Channel
	Clock    sharedDomain.Clock
}

type workItem struct {
	NotificationID int64 `json:"notification_id"`
}

// Dispatcher runs the outbox delivery loop.
type Dispatcher struct {
	deps    Dependencies
	config  Config
	limiter *rate.Limiter
	logger  *slog.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(deps Dependencies, config Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = sharedDomain.SystemClock{}
	}
	config = config.normalize()
	return &Dispatcher{
		deps:     deps,
		config:   config,
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimitPerSec), config.Burst),
		logger:   logger.With("worker_id", config.WorkerID),
		stopChan: make(chan struct{}),
	}
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.config
}

// Start begins the polling loop in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.stopChan = make(chan struct{})
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	d.logger.Info("dispatch worker started",
		"poll_interval", d.config.PollInterval,
		"batch_size", d.config.BatchSize,
		"concurrency", d.config.WorkerConcurrency,
		"rate_limit", d.config.RateLimitPerSec,
	)
	return nil
}

// Stop stops claiming new work and waits for the in-flight cycle to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopChan)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("dispatch worker stopped")
}

// IsRunning returns true if the loop is running.
func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		case <-ticker.C:
			// A cycle that has started runs to completion even when ctx is
			// cancelled underneath it.
			if _, err := d.RunCycle(context.WithoutCancel(ctx)); err != nil {
				d.logger.Error("dispatch cycle failed", "error", err)
			}
		}
	}
}

// RunCycle performs one claim, publish, read and process round and returns
// the number of messages processed.
func (d *Dispatcher) RunCycle(ctx context.Context) (int, error) {
	now := d.deps.Clock.Now()
	claimed, err := d.deps.Outbox.Claim(ctx, d.config.WorkerID, d.config.BatchSize, d.config.LeaseDuration, now)
	if err != nil {
		d.recordError(err)
		return 0, fmt.Errorf("failed to claim notifications: %w", err)
	}
	d.recordClaimed(len(claimed))

	for _, n := range claimed {
		payload, _ := json.Marshal(workItem{NotificationID: n.ID()})
		if _, err := d.deps.Broker.Publish(ctx, payload, 0); err != nil {
			d.recordError(err)
			d.logger.Warn("failed to hand notification to broker",
				"notification_id", n.ID(),
				"error", err,
			)
			if relErr := d.deps.Outbox.ReleaseLease(ctx, n.ID(), d.config.WorkerID); relErr != nil {
				d.logger.Error("failed to release lease", "notification_id", n.ID(), "error", relErr)
			}
		}
	}

	block := d.config.ReadBlock
	if len(claimed) == 0 {
		block = 0
	}
	msgs, err := d.deps.Broker.Read(ctx, d.config.BatchSize, block)
	if err != nil {
		d.recordError(err)
		return 0, fmt.Errorf("failed to read from broker: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.WorkerConcurrency)
	for _, msg := range msgs {
		msg := msg
		g.Go(func() error {
			if err := d.limiter.Wait(gctx); err != nil {
				return err
			}
			d.handle(gctx, msg)
			return nil
		})
	}
	err = g.Wait()
	d.recordCycle(d.deps.Clock.Now())
	return len(msgs), err
}

// handle processes one broker message and acknowledges it. Failures leave the
// row leased; it is claimed again once the lease runs out.
func (d *Dispatcher) handle(ctx context.Context, msg broker.Message) {
	var item workItem
	if err := json.Unmarshal(msg.Payload, &item); err != nil || item.NotificationID <= 0 {
		d.logger.Warn("dropping malformed work item", "message_id", msg.ID)
	} else if err := d.Process(ctx, item.NotificationID); err != nil {
		d.recordError(err)
		d.logger.Error("failed to process notification",
			"notification_id", item.NotificationID,
			"error", err,
		)
	}

	if err := d.deps.Broker.Ack(ctx, msg.ID); err != nil {
		d.logger.Warn("failed to ack message", "message_id", msg.ID, "error", err)
	}
}

// Process attempts delivery of one notification. Rows that are no longer
// pending or no longer leased to this worker are skipped, which makes
// redelivered work items harmless. Outcomes are recorded only while the lease
// is still held.
func (d *Dispatcher) Process(ctx context.Context, id int64) error {
	n, err := d.deps.Outbox.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil || !n.IsPending() {
		d.recordSkipped()
		return nil
	}
	// The lease may have run out while the work item waited in the broker and
	// the row may belong to another worker now.
	held, err := d.deps.Outbox.RenewLease(ctx, n.ID(), d.config.WorkerID, d.config.LeaseDuration, d.deps.Clock.Now())
	if err != nil {
		return err
	}
	if !held {
		d.recordSkipped()
		d.logger.DebugContext(ctx, "notification leased elsewhere, skipping", "notification_id", n.ID())
		return nil
	}
	if n.CorrelationID() != "" {
		ctx = observability.WithCorrelationID(ctx, n.CorrelationID())
	}
	logger := d.logger.With(
		"notification_id", n.ID(),
		"type", string(n.Type()),
		"correlation_id", n.CorrelationID(),
	)

	entry, err := d.deps.Logs.FindByKey(ctx, n.Key())
	if err != nil {
		return err
	}
	if entry != nil && entry.DeliveryStatus == domain.StatusSent {
		logger.InfoContext(ctx, "notification already delivered, closing row")
		if _, err := d.deps.Outbox.MarkSent(ctx, n.ID(), d.config.WorkerID, d.deps.Clock.Now()); err != nil {
			return err
		}
		d.recordSkipped()
		return nil
	}

	rendered, err := d.deps.Renderer.Render(ctx, domain.RenderRequest{
		Key:     string(n.Type()),
		Context: renderContext(n),
		Locale:  d.config.Locale,
		Channel: d.config.Channel,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to render notification", "error", err)
		return d.fail(ctx, n, n.Attempts()+1, err, domain.Rendered{Key: string(n.Type())})
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	res := d.deps.Channel.Send(sendCtx, domain.Delivery{
		Recipient:     n.Recipient(),
		Text:          rendered.Text,
		CorrelationID: n.CorrelationID(),
		Type:          n.Type(),
	})
	cancel()

	switch res.Outcome {
	case domain.OutcomeOK:
		return d.markSent(ctx, n, rendered)
	case domain.OutcomeRetryable:
		attempts := n.Attempts() + 1
		if attempts < d.config.MaxAttempts {
			next := d.deps.Clock.Now().Add(d.config.Backoff(attempts))
			ok, err := d.deps.Outbox.MarkRetry(ctx, n.ID(), d.config.WorkerID, attempts, next, errorText(res.Err), d.deps.Clock.Now())
			if err != nil {
				return err
			}
			if !ok {
				d.leaseLost(ctx, n)
				return nil
			}
			d.recordRetried()
			logger.WarnContext(ctx, "delivery failed, will retry",
				"attempts", attempts,
				"next_retry_at", next,
				"error", res.Err,
			)
			return nil
		}
		return d.fail(ctx, n, attempts, res.Err, rendered)
	default:
		return d.fail(ctx, n, n.Attempts()+1, res.Err, rendered)
	}
}

// leaseLost reports a mark that found the row no longer leased to this worker.
func (d *Dispatcher) leaseLost(ctx context.Context, n *domain.Notification) {
	d.recordSkipped()
	d.logger.WarnContext(ctx, "lease lost before the outcome was recorded",
		"notification_id", n.ID(),
		"type", string(n.Type()),
	)
}

func (d *Dispatcher) markSent(ctx context.Context, n *domain.Notification, rendered domain.Rendered) error {
	now := d.deps.Clock.Now()
	var held bool
	err := sharedApplication.WithUnitOfWork(ctx, d.deps.UoW, func(txCtx context.Context) error {
		ok, err := d.deps.Outbox.MarkSent(txCtx, n.ID(), d.config.WorkerID, now)
		if err != nil || !ok {
			return err
		}
		held = true
		return d.deps.Logs.Record(txCtx, domain.LogEntry{
			Key:             n.Key(),
			DeliveryStatus:  domain.StatusSent,
			Attempts:        n.Attempts() + 1,
			TemplateKey:     rendered.Key,
			TemplateVersion: rendered.Version,
			CreatedAt:       now,
		})
	})
	if err != nil {
		return err
	}
	if !held {
		d.leaseLost(ctx, n)
		return nil
	}
	d.recordSent()
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, n *domain.Notification, attempts int, cause error, rendered domain.Rendered) error {
	now := d.deps.Clock.Now()
	lastError := errorText(cause)
	var held bool
	err := sharedApplication.WithUnitOfWork(ctx, d.deps.UoW, func(txCtx context.Context) error {
		ok, err := d.deps.Outbox.MarkFailed(txCtx, n.ID(), d.config.WorkerID, attempts, lastError, now)
		if err != nil || !ok {
			return err
		}
		held = true
		return d.deps.Logs.Record(txCtx, domain.LogEntry{
			Key:             n.Key(),
			DeliveryStatus:  domain.StatusFailed,
			Attempts:        attempts,
			LastError:       lastError,
			TemplateKey:     rendered.Key,
			TemplateVersion: rendered.Version,
			CreatedAt:       now,
		})
	})
	if err != nil {
		return err
	}
	if !held {
		d.leaseLost(ctx, n)
		return nil
	}
	d.recordFailed(cause)
	d.logger.ErrorContext(ctx, "notification delivery failed permanently",
		"notification_id", n.ID(),
		"type", string(n.Type()),
		"attempts", attempts,
		"error", cause,
	)
	return nil
}

func renderContext(n *domain.Notification) map[string]any {
	data := make(map[string]any)
	if len(n.Payload()) > 0 {
		_ = json.Unmarshal(n.Payload(), &data)
	}
	data["type"] = string(n.Type())
	data["subject_id"] = n.SubjectID()
	data["candidate_id"] = n.CandidateID()
	data["recruiter_id"] = n.RecruiterID()
	data["recipient"] = n.Recipient()
	return data
}

func errorText(err error) string {
	if err == nil {
		return "delivery failed"
	}
	var transient *domain.TransientDeliveryError
	if errors.As(err, &transient) && transient.Err != nil {
		return transient.Err.Error()
	}
	return err.Error()
}

// WorkerIDFor derives a stable worker id from a host name and pid.
func WorkerIDFor(host string, pid int) string {
	return host + "-" + strconv.Itoa(pid)
}
