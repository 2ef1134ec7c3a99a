package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

const notificationColumns = `id, type, subject_id, candidate_id, recruiter_id, payload, status, attempts, next_retry_at, last_error, correlation_id, created_at, updated_at, sent_at`

// OutboxRepository implements domain.OutboxRepository.
type OutboxRepository struct {
	conn database.Connection
}

// NewOutboxRepository creates a new outbox repository.
func NewOutboxRepository(conn database.Connection) *OutboxRepository {
	return &OutboxRepository{conn: conn}
}

func (r *OutboxRepository) executor(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// InsertIfAbsent inserts n unless its key already exists.
func (r *OutboxRepository) InsertIfAbsent(ctx context.Context, n *domain.Notification) (bool, error) {
	var id int64
	err := r.executor(ctx).QueryRow(ctx, `
		INSERT INTO outbox_notifications
			(type, subject_id, candidate_id, recruiter_id, payload, status, attempts, next_retry_at, correlation_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, subject_id, candidate_id) DO NOTHING
		RETURNING id`,
		string(n.Type()),
		n.SubjectID(),
		n.CandidateID(),
		n.RecruiterID(),
		string(n.Payload()),
		string(n.Status()),
		n.Attempts(),
		database.NullableTime(n.NextRetryAt()),
		n.CorrelationID(),
		n.CreatedAt(),
		n.UpdatedAt(),
	).Scan(&id)
	if err != nil {
		if database.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}
	n.AssignID(id)
	return true, nil
}

// FindByKey returns the row for key.
func (r *OutboxRepository) FindByKey(ctx context.Context, key domain.Key) (*domain.Notification, error) {
	n, err := scanNotification(r.executor(ctx).QueryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM outbox_notifications
		WHERE type = ? AND subject_id = ? AND candidate_id = ?`,
		string(key.Type), key.SubjectID, key.CandidateID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}
	return n, nil
}

// FindByID returns the row with id.
func (r *OutboxRepository) FindByID(ctx context.Context, id int64) (*domain.Notification, error) {
	n, err := scanNotification(r.executor(ctx).QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM outbox_notifications WHERE id = ?`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load notification %d: %w", id, err)
	}
	return n, nil
}

// UpdatePending stores the coalesced payload of a row that is still pending.
func (r *OutboxRepository) UpdatePending(ctx context.Context, n *domain.Notification) (bool, error) {
	res, err := r.executor(ctx).Exec(ctx, `
		UPDATE outbox_notifications
		SET payload = ?, recruiter_id = ?, correlation_id = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(n.Payload()), n.RecruiterID(), n.CorrelationID(), n.UpdatedAt(), n.ID(), string(domain.StatusPending))
	if err != nil {
		return false, fmt.Errorf("failed to update notification %d: %w", n.ID(), err)
	}
	return affectedOne(res)
}

// Claim leases due pending rows. On PostgreSQL rows locked by a concurrent
// claimer are skipped; SQLite serializes writers instead.
func (r *OutboxRepository) Claim(ctx context.Context, workerID string, limit int, lease time.Duration, now time.Time) ([]*domain.Notification, error) {
	if limit <= 0 {
		return nil, nil
	}

	lockClause := ""
	if r.conn.Driver().SkipsLockedRows() {
		lockClause = "FOR UPDATE SKIP LOCKED"
	}

	now = now.UTC()
	rows, err := r.executor(ctx).Query(ctx, `
		UPDATE outbox_notifications
		SET locked_by = ?, locked_until = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM outbox_notifications
			WHERE status = ?
			  AND (next_retry_at IS NULL OR next_retry_at <= ?)
			  AND (locked_until IS NULL OR locked_until <= ?)
			ORDER BY next_retry_at, id
			LIMIT ?
			`+lockClause+`
		)
		RETURNING `+notificationColumns,
		workerID, now.Add(lease), now, string(domain.StatusPending), now, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim notifications: %w", err)
	}
	defer rows.Close()

	var claimed []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].ID() < claimed[j].ID() })
	return claimed, nil
}

// leaseHolder matches rows leased to workerID, or unleased rows when
// workerID is empty.
const leaseHolder = `COALESCE(locked_by, '') = ?`

// RenewLease pushes the lease of a pending row held by workerID to now+lease.
func (r *OutboxRepository) RenewLease(ctx context.Context, id int64, workerID string, lease time.Duration, now time.Time) (bool, error) {
	res, err := r.executor(ctx).Exec(ctx, `
		UPDATE outbox_notifications
		SET locked_until = ?, updated_at = ?
		WHERE id = ? AND status = ? AND locked_by = ?`,
		now.Add(lease).UTC(), now.UTC(), id, string(domain.StatusPending), workerID)
	if err != nil {
		return false, fmt.Errorf("failed to renew lease of notification %d: %w", id, err)
	}
	return affectedOne(res)
}

// MarkSent records a delivery and clears the lease.
func (r *OutboxRepository) MarkSent(ctx context.Context, id int64, workerID string, now time.Time) (bool, error) {
	res, err := r.executor(ctx).Exec(ctx, `
		UPDATE outbox_notifications
		SET status = ?, sent_at = ?, next_retry_at = NULL, locked_by = NULL, locked_until = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND `+leaseHolder,
		string(domain.StatusSent), now.UTC(), now.UTC(), id, string(domain.StatusPending), workerID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification %d sent: %w", id, err)
	}
	return affectedOne(res)
}

// MarkRetry stores the attempt count and next due time, and clears the lease.
func (r *OutboxRepository) MarkRetry(ctx context.Context, id int64, workerID string, attempts int, nextRetryAt time.Time, lastError string, now time.Time) (bool, error) {
	res, err := r.executor(ctx).Exec(ctx, `
		UPDATE outbox_notifications
		SET attempts = ?, next_retry_at = ?, last_error = ?, locked_by = NULL, locked_until = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND `+leaseHolder,
		attempts, nextRetryAt.UTC(), database.NullableString(lastError), now.UTC(), id, string(domain.StatusPending), workerID)
	if err != nil {
		return false, fmt.Errorf("failed to schedule retry of notification %d: %w", id, err)
	}
	return affectedOne(res)
}

// MarkFailed makes the row terminal until an operator resets it.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, workerID string, attempts int, lastError string, now time.Time) (bool, error) {
	res, err := r.executor(ctx).Exec(ctx, `
		UPDATE outbox_notifications
		SET status = ?, attempts = ?, next_retry_at = NULL, last_error = ?, locked_by = NULL, locked_until = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND `+leaseHolder,
		string(domain.StatusFailed), attempts, database.NullableString(lastError), now.UTC(), id, string(domain.StatusPending), workerID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification %d failed: %w", id, err)
	}
	return affectedOne(res)
}

// ReleaseLease clears a lease still held by workerID.
func (r *OutboxRepository) ReleaseLease(ctx context.Context, id int64, workerID string) error {
	_, err := r.executor(ctx).Exec(ctx, `
		UPDATE outbox_notifications
		SET locked_by = NULL, locked_until = NULL
		WHERE id = ? AND locked_by = ?`,
		id, workerID)
	if err != nil {
		return fmt.Errorf("failed to release lease of notification %d: %w", id, err)
	}
	return nil
}

// ListFailed returns failed rows, most recently failed first.
func (r *OutboxRepository) ListFailed(ctx context.Context, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.executor(ctx).Query(ctx, `
		SELECT `+notificationColumns+`
		FROM outbox_notifications
		WHERE status = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT ?`,
		string(domain.StatusFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed notifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ResetFailed re-arms a failed row: pending, zero attempts, due now.
func (r *OutboxRepository) ResetFailed(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := r.executor(ctx).Exec(ctx, `
		UPDATE outbox_notifications
		SET status = ?, attempts = 0, next_retry_at = ?, last_error = NULL, locked_by = NULL, locked_until = NULL, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.StatusPending), now.UTC(), now.UTC(), id, string(domain.StatusFailed))
	if err != nil {
		return false, fmt.Errorf("failed to reset notification %d: %w", id, err)
	}
	return affectedOne(res)
}

// CountByStatus returns the number of rows per status.
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	rows, err := r.executor(ctx).Query(ctx, `SELECT status, COUNT(*) FROM outbox_notifications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	defer rows.Close()

	counts := map[domain.Status]int64{
		domain.StatusPending: 0,
		domain.StatusSent:    0,
		domain.StatusFailed:  0,
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

func scanNotification(row database.Row) (*domain.Notification, error) {
	var (
		id, subjectID, candidateID, recruiterID int64
		typ, status, correlationID              string
		payload                                 []byte
		attempts                                int
		nextRetryAt, sentAt                     sql.NullTime
		lastError                               sql.NullString
		createdAt, updatedAt                    time.Time
	)
	if err := row.Scan(&id, &typ, &subjectID, &candidateID, &recruiterID, &payload, &status, &attempts,
		&nextRetryAt, &lastError, &correlationID, &createdAt, &updatedAt, &sentAt); err != nil {
		return nil, err
	}

	return domain.RehydrateNotification(
		id,
		domain.Key{Type: domain.Type(typ), SubjectID: subjectID, CandidateID: candidateID},
		recruiterID,
		payload,
		domain.Status(status),
		attempts,
		database.TimePtr(nextRetryAt),
		lastError.String,
		correlationID,
		database.TimePtr(sentAt),
		createdAt, updatedAt,
	), nil
}

func affectedOne(res database.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
