package domain

import (
	"context"
	"time"
)

// TokenAction names the operation a one-time action token authorizes.
type TokenAction string

const (
	ActionConfirmAssignment TokenAction = "confirm_assignment"
	ActionRejectAssignment  TokenAction = "reject_assignment"
	ActionRequestReschedule TokenAction = "request_reschedule"
)

// IsValid reports whether a is a known action.
func (a TokenAction) IsValid() bool {
	switch a {
	case ActionConfirmAssignment, ActionRejectAssignment, ActionRequestReschedule:
		return true
	}
	return false
}

// ActionTokenStore validates single-use tokens bound to an action and entity.
type ActionTokenStore interface {
	// Issue creates a token for action on entityID that expires after ttl.
	Issue(ctx context.Context, action TokenAction, entityID int64, ttl time.Duration) (string, error)

	// Consume marks the token used. It must run in the caller's unit of work so
	// the token is only spent when the guarded transition commits.
	// Unknown, expired, used or mismatched tokens return ErrInvalidActionToken.
	Consume(ctx context.Context, token string, action TokenAction, entityID int64) error
}
