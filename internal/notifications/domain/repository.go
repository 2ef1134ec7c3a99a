package domain

import (
	"context"
	"time"
)

// OutboxRepository persists notifications. Every transition out of pending
// is conditional on the row still being pending and on the caller's lease.
type OutboxRepository interface {
	// InsertIfAbsent inserts n unless a row with its key exists, and reports
	// whether it did.
	InsertIfAbsent(ctx context.Context, n *Notification) (bool, error)

	// FindByKey returns nil when no row exists for key.
	FindByKey(ctx context.Context, key Key) (*Notification, error)

	// FindByID returns nil when the row does not exist.
	FindByID(ctx context.Context, id int64) (*Notification, error)

	// UpdatePending stores coalesced fields of a pending row.
	UpdatePending(ctx context.Context, n *Notification) (bool, error)

	// Claim leases up to limit due pending rows to workerID.
	Claim(ctx context.Context, workerID string, limit int, lease time.Duration, now time.Time) ([]*Notification, error)

	// RenewLease extends the lease of a pending row still held by workerID and
	// reports whether it is held.
	RenewLease(ctx context.Context, id int64, workerID string, lease time.Duration, now time.Time) (bool, error)

	// The marks below apply only while workerID holds the row's lease. An
	// empty workerID matches rows nobody has leased.

	// MarkSent records a successful delivery.
	MarkSent(ctx context.Context, id int64, workerID string, now time.Time) (bool, error)

	// MarkRetry counts a failed attempt and schedules the next one.
	MarkRetry(ctx context.Context, id int64, workerID string, attempts int, nextRetryAt time.Time, lastError string, now time.Time) (bool, error)

	// MarkFailed stops automatic delivery of the row.
	MarkFailed(ctx context.Context, id int64, workerID string, attempts int, lastError string, now time.Time) (bool, error)

	// ReleaseLease clears the worker lease without changing status.
	ReleaseLease(ctx context.Context, id int64, workerID string) error

	// ListFailed returns failed rows, newest first.
	ListFailed(ctx context.Context, limit int) ([]*Notification, error)

	// ResetFailed re-arms a failed row with zero attempts.
	ResetFailed(ctx context.Context, id int64, now time.Time) (bool, error)

	// CountByStatus returns row counts per status.
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// LogRepository persists the delivery audit.
type LogRepository interface {
	// Record inserts or updates the entry for its key unless a sent entry
	// already exists. A duplicate is silently ignored.
	Record(ctx context.Context, entry LogEntry) error

	// FindByKey returns nil when no entry exists.
	FindByKey(ctx context.Context, key Key) (*LogEntry, error)
}
