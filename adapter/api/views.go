package api

import (
	"time"

	notifDomain "github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

type assignmentView struct {
	ID          int64     `json:"id"`
	SlotID      int64     `json:"slot_id"`
	OwnerID     int64     `json:"owner_id"`
	CandidateID int64     `json:"candidate_id"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newAssignmentView(a *domain.Assignment) *assignmentView {
	if a == nil {
		return nil
	}
	return &assignmentView{
		ID:          a.ID(),
		SlotID:      a.SlotID(),
		OwnerID:     a.OwnerID(),
		CandidateID: a.CandidateID(),
		Status:      string(a.Status()),
		UpdatedAt:   a.UpdatedAt(),
	}
}

type rescheduleView struct {
	ID             int64      `json:"id"`
	AssignmentID   int64      `json:"assignment_id"`
	RequestedStart time.Time  `json:"requested_start"`
	DurationMin    int        `json:"duration_min,omitempty"`
	Comment        string     `json:"comment,omitempty"`
	Status         string     `json:"status"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
}

func newRescheduleView(r *domain.RescheduleRequest) *rescheduleView {
	if r == nil {
		return nil
	}
	return &rescheduleView{
		ID:             r.ID(),
		AssignmentID:   r.AssignmentID(),
		RequestedStart: r.RequestedStart(),
		DurationMin:    int(r.Duration() / time.Minute),
		Comment:        r.Comment(),
		Status:         string(r.Status()),
		DecidedAt:      r.DecidedAt(),
	}
}

func slotView(s *domain.Slot) *queries.SlotView {
	if s == nil {
		return nil
	}
	v := queries.NewSlotView(s)
	return &v
}

type notificationView struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	SubjectID   int64      `json:"subject_id"`
	CandidateID int64      `json:"candidate_id"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

func newNotificationView(n *notifDomain.Notification) notificationView {
	return notificationView{
		ID:          n.ID(),
		Type:        string(n.Type()),
		SubjectID:   n.SubjectID(),
		CandidateID: n.CandidateID(),
		Status:      string(n.Status()),
		Attempts:    n.Attempts(),
		NextRetryAt: n.NextRetryAt(),
		LastError:   n.LastError(),
	}
}
