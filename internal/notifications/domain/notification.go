package domain

import (
	"encoding/json"
	"errors"
	"time"

	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
)

var (
	ErrInvalidNotification  = errors.New("invalid notification")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotFailed            = errors.New("notification is not failed")
)

// Type identifies a logical notification. Together with the subject and
// candidate it forms the dedup key.
type Type string

const (
	TypeSlotReserved        Type = "slot_reserved"
	TypeSlotApproved        Type = "slot_approved"
	TypeSlotCancelled       Type = "slot_cancelled"
	TypeAssignmentOffered   Type = "assignment_offered"
	TypeAssignmentConfirmed Type = "assignment_confirmed"
	TypeAssignmentRejected  Type = "assignment_rejected"
	TypeAssignmentCancelled Type = "assignment_cancelled"
	TypeRescheduleRequested Type = "reschedule_requested"
	TypeRescheduleApproved  Type = "reschedule_approved"
	TypeRescheduleDeclined  Type = "reschedule_declined"
	TypeReminder            Type = "reminder"
)

// Audience is who receives a notification type.
type Audience string

const (
	AudienceCandidate Audience = "candidate"
	AudienceRecruiter Audience = "recruiter"
)

// Audience reports the recipient side of t.
func (t Type) Audience() Audience {
	switch t {
	case TypeSlotReserved, TypeAssignmentConfirmed, TypeAssignmentRejected, TypeRescheduleRequested:
		return AudienceRecruiter
	}
	return AudienceCandidate
}

// Status is the delivery state of an outbox row.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Key is the dedup key of a notification.
type Key struct {
	Type        Type
	SubjectID   int64
	CandidateID int64
}

// Notification is an outbox row: an intent to deliver one logical message.
type Notification struct {
	sharedDomain.BaseEntity
	key           Key
	recruiterID   int64
	payload       json.RawMessage
	status        Status
	attempts      int
	nextRetryAt   *time.Time
	lastError     string
	correlationID string
	sentAt        *time.Time
}

// NewNotification creates a pending notification due immediately.
func NewNotification(key Key, recruiterID int64, payload json.RawMessage, correlationID string, now time.Time) (*Notification, error) {
	if key.Type == "" || key.SubjectID <= 0 || key.CandidateID <= 0 {
		return nil, ErrInvalidNotification
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if !json.Valid(payload) {
		return nil, ErrInvalidNotification
	}
	now = now.UTC()
	return &Notification{
		BaseEntity:    sharedDomain.NewBaseEntity(now),
		key:           key,
		recruiterID:   recruiterID,
		payload:       payload,
		status:        StatusPending,
		nextRetryAt:   &now,
		correlationID: correlationID,
	}, nil
}

func (n *Notification) Key() Key                 { return n.key }
func (n *Notification) Type() Type               { return n.key.Type }
func (n *Notification) SubjectID() int64         { return n.key.SubjectID }
func (n *Notification) CandidateID() int64       { return n.key.CandidateID }
func (n *Notification) RecruiterID() int64       { return n.recruiterID }
func (n *Notification) Payload() json.RawMessage { return n.payload }
func (n *Notification) Status() Status           { return n.status }
func (n *Notification) Attempts() int            { return n.attempts }
func (n *Notification) NextRetryAt() *time.Time  { return n.nextRetryAt }
func (n *Notification) LastError() string        { return n.lastError }
func (n *Notification) CorrelationID() string    { return n.correlationID }
func (n *Notification) SentAt() *time.Time       { return n.sentAt }
func (n *Notification) IsPending() bool          { return n.status == StatusPending }

// Recipient is the address handed to the delivery channel.
func (n *Notification) Recipient() string {
	if n.key.Type.Audience() == AudienceRecruiter {
		return "recruiter:" + itoa(n.recruiterID)
	}
	return "candidate:" + itoa(n.key.CandidateID)
}

// Coalesce folds a repeated enqueue into this pending row.
func (n *Notification) Coalesce(recruiterID int64, payload json.RawMessage, correlationID string, now time.Time) {
	if len(payload) > 0 {
		n.payload = payload
	}
	if recruiterID > 0 {
		n.recruiterID = recruiterID
	}
	if correlationID != "" {
		n.correlationID = correlationID
	}
	n.Touch(now)
}

// RehydrateNotification recreates a notification from persisted state.
func RehydrateNotification(
	id int64,
	key Key,
	recruiterID int64,
	payload json.RawMessage,
	status Status,
	attempts int,
	nextRetryAt *time.Time,
	lastError string,
	correlationID string,
	sentAt *time.Time,
	createdAt, updatedAt time.Time,
) *Notification {
	return &Notification{
		BaseEntity:    sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		key:           key,
		recruiterID:   recruiterID,
		payload:       payload,
		status:        status,
		attempts:      attempts,
		nextRetryAt:   nextRetryAt,
		lastError:     lastError,
		correlationID: correlationID,
		sentAt:        sentAt,
	}
}
