package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

// ActionTokenRepository implements domain.ActionTokenStore.
type ActionTokenRepository struct {
	conn  database.Connection
	clock sharedDomain.Clock
}

// NewActionTokenRepository creates a new action token store.
func NewActionTokenRepository(conn database.Connection, clock sharedDomain.Clock) *ActionTokenRepository {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &ActionTokenRepository{conn: conn, clock: clock}
}

// Issue stores a new random token for action on entityID.
func (r *ActionTokenRepository) Issue(ctx context.Context, action domain.TokenAction, entityID int64, ttl time.Duration) (string, error) {
	if !action.IsValid() {
		return "", &domain.ValidationError{Field: "action", Reason: "unknown action " + string(action)}
	}
	if ttl <= 0 {
		return "", &domain.ValidationError{Field: "ttl", Reason: "must be positive"}
	}

	token := uuid.NewString()
	now := r.clock.Now()
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO action_tokens (token, action, entity_id, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		token, string(action), entityID, now.Add(ttl), now)
	if err != nil {
		return "", fmt.Errorf("failed to issue action token: %w", err)
	}
	return token, nil
}

// Consume spends the token in a single conditional update.
func (r *ActionTokenRepository) Consume(ctx context.Context, token string, action domain.TokenAction, entityID int64) error {
	if token == "" {
		return domain.ErrInvalidActionToken
	}
	now := r.clock.Now()
	res, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE action_tokens
		SET used_at = ?
		WHERE token = ? AND action = ? AND entity_id = ?
		  AND used_at IS NULL AND expires_at > ?`,
		now, token, string(action), entityID, now)
	if err != nil {
		return fmt.Errorf("failed to consume action token: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidActionToken
	}
	return nil
}
