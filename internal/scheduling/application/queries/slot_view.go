package queries

import (
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// SlotView is the read model of a slot.
type SlotView struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	LocationID  int64     `json:"location_id,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DurationMin int       `json:"duration_min"`
	Timezone    string    `json:"timezone"`
	Purpose     string    `json:"purpose"`
	Status      string    `json:"status"`
	CandidateID int64     `json:"candidate_id,omitempty"`
	Capacity    int       `json:"capacity"`
}

// NewSlotView maps a slot to its read model.
func NewSlotView(s *domain.Slot) SlotView {
	return SlotView{
		ID:          s.ID(),
		OwnerID:     s.OwnerID(),
		LocationID:  s.LocationID(),
		Start:       s.Start(),
		End:         s.End(),
		DurationMin: int(s.Duration() / time.Minute),
		Timezone:    s.Timezone(),
		Purpose:     string(s.Purpose()),
		Status:      string(s.Status()),
		CandidateID: s.CandidateID(),
		Capacity:    s.Capacity(),
	}
}
