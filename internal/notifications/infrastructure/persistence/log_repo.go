package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

// LogRepository implements domain.LogRepository.
type LogRepository struct {
	conn database.Connection
}

// NewLogRepository creates a new notification log repository.
func NewLogRepository(conn database.Connection) *LogRepository {
	return &LogRepository{conn: conn}
}

// Record upserts the entry for its key. A sent entry is immutable; writing
// over it, including a second sent entry, changes nothing and is not an error.
func (r *LogRepository) Record(ctx context.Context, e domain.LogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO notification_logs
			(type, subject_id, candidate_id, delivery_status, attempts, last_error, template_key, template_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, subject_id, candidate_id) DO UPDATE SET
			delivery_status = excluded.delivery_status,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			template_key = excluded.template_key,
			template_version = excluded.template_version
		WHERE notification_logs.delivery_status <> 'sent'`,
		string(e.Key.Type),
		e.Key.SubjectID,
		e.Key.CandidateID,
		string(e.DeliveryStatus),
		e.Attempts,
		database.NullableString(e.LastError),
		e.TemplateKey,
		e.TemplateVersion,
		e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record notification log: %w", err)
	}
	return nil
}

// FindByKey returns the entry for key.
func (r *LogRepository) FindByKey(ctx context.Context, key domain.Key) (*domain.LogEntry, error) {
	var (
		e         domain.LogEntry
		status    string
		lastError sql.NullString
	)
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, `
		SELECT id, delivery_status, attempts, last_error, template_key, template_version, created_at
		FROM notification_logs
		WHERE type = ? AND subject_id = ? AND candidate_id = ?`,
		string(key.Type), key.SubjectID, key.CandidateID,
	).Scan(&e.ID, &status, &e.Attempts, &lastError, &e.TemplateKey, &e.TemplateVersion, &e.CreatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load notification log: %w", err)
	}

	e.Key = key
	e.DeliveryStatus = domain.Status(status)
	e.LastError = lastError.String
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}
