package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
)

const (
	// MinSlotDuration is the shortest bookable window.
	MinSlotDuration = 10 * time.Minute
	// MaxSlotDuration is the longest bookable window.
	MaxSlotDuration = 8 * time.Hour
	// DefaultCapacity is the number of seats on a slot.
	DefaultCapacity = 1
)

// Purpose states what a slot is booked for.
type Purpose string

const (
	PurposeInterview Purpose = "interview"
	PurposeIntroDay  Purpose = "intro_day"
)

// IsValid reports whether p is a known purpose.
func (p Purpose) IsValid() bool {
	return p == PurposeInterview || p == PurposeIntroDay
}

// Slot is a bookable window owned by a recruiter.
type Slot struct {
	sharedDomain.BaseEntity
	ownerID     int64
	locationID  int64
	start       time.Time
	duration    time.Duration
	timezone    string
	status      Status
	purpose     Purpose
	candidateID int64
	capacity    int
}

// NewSlotParams contains the data needed to schedule a slot.
type NewSlotParams struct {
	OwnerID    int64
	LocationID int64
	Start      time.Time
	Duration   time.Duration
	Timezone   string
	Purpose    Purpose
	Capacity   int
	Status     Status
}

// NewSlot validates params and returns an unsaved slot.
// Status defaults to FREE; reschedule approval creates slots directly BOOKED.
func NewSlot(p NewSlotParams, now time.Time) (*Slot, error) {
	if p.OwnerID <= 0 {
		return nil, invalid("owner_id", "must be positive")
	}
	if p.LocationID <= 0 {
		return nil, invalid("location_id", "must be positive")
	}
	if p.Start.IsZero() {
		return nil, invalid("start", "is required")
	}
	if err := ValidateDuration(p.Duration); err != nil {
		return nil, err
	}
	if _, err := LoadTimezone(p.Timezone); err != nil {
		return nil, err
	}
	if p.Purpose == "" {
		p.Purpose = PurposeInterview
	}
	if !p.Purpose.IsValid() {
		return nil, invalid("purpose", "unknown purpose "+string(p.Purpose))
	}
	if p.Capacity == 0 {
		p.Capacity = DefaultCapacity
	}
	if p.Capacity < 1 {
		return nil, invalid("capacity", "must be at least 1")
	}
	if p.Status == "" {
		p.Status = StatusFree
	}
	if !p.Status.IsValid() {
		return nil, invalid("status", "unknown status "+string(p.Status))
	}

	return &Slot{
		BaseEntity: sharedDomain.NewBaseEntity(now),
		ownerID:    p.OwnerID,
		locationID: p.LocationID,
		start:      p.Start.UTC().Truncate(time.Minute),
		duration:   p.Duration,
		timezone:   p.Timezone,
		status:     p.Status,
		purpose:    p.Purpose,
		capacity:   p.Capacity,
	}, nil
}

// ValidateDuration checks that d is a whole number of minutes within bounds.
func ValidateDuration(d time.Duration) error {
	if d%time.Minute != 0 {
		return invalid("duration", "must be a whole number of minutes")
	}
	if d < MinSlotDuration || d > MaxSlotDuration {
		return invalid("duration", "must be between "+MinSlotDuration.String()+" and "+MaxSlotDuration.String())
	}
	return nil
}

// LoadTimezone resolves an IANA zone name.
func LoadTimezone(name string) (*time.Location, error) {
	if name == "" {
		return nil, invalid("timezone", "is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, invalid("timezone", "unknown zone "+name)
	}
	return loc, nil
}

// Getters
func (s *Slot) OwnerID() int64          { return s.ownerID }
func (s *Slot) LocationID() int64       { return s.locationID }
func (s *Slot) Start() time.Time        { return s.start }
func (s *Slot) Duration() time.Duration { return s.duration }
func (s *Slot) Timezone() string        { return s.timezone }
func (s *Slot) Status() Status          { return s.status }
func (s *Slot) Purpose() Purpose        { return s.purpose }
func (s *Slot) CandidateID() int64      { return s.candidateID }
func (s *Slot) Capacity() int           { return s.capacity }

// End returns the exclusive end of the slot window.
func (s *Slot) End() time.Time {
	return s.start.Add(s.duration)
}

// LocalDate is the calendar date of the slot in its own timezone.
func (s *Slot) LocalDate() string {
	loc, err := time.LoadLocation(s.timezone)
	if err != nil {
		loc = time.UTC
	}
	return s.start.In(loc).Format(time.DateOnly)
}

// HasCandidate reports whether a candidate is linked to the slot.
func (s *Slot) HasCandidate() bool { return s.candidateID != 0 }

// Overlaps reports whether the two windows intersect on [start, end).
func (s *Slot) Overlaps(other *Slot) bool {
	return s.start.Before(other.End()) && other.start.Before(s.End())
}

// TransitionTo moves the slot along an allowed edge.
// Releasing to FREE clears the candidate link.
func (s *Slot) TransitionTo(target Status, now time.Time) error {
	next, err := EnforceTransition(s.status, target)
	if err != nil {
		return err
	}
	if next == StatusFree {
		s.candidateID = 0
	}
	s.status = next
	s.Touch(now)
	return nil
}

// Hold places a FREE slot on hold for a candidate.
func (s *Slot) Hold(candidateID int64, now time.Time) error {
	if candidateID <= 0 {
		return invalid("candidate_id", "must be positive")
	}
	if s.status != StatusFree {
		return &InvalidTransitionError{From: s.status, To: StatusPending}
	}
	s.status = StatusPending
	s.candidateID = candidateID
	s.Touch(now)
	return nil
}

// AssignCandidate links a candidate without a status change. Used when a
// slot is created already booked.
func (s *Slot) AssignCandidate(candidateID int64) {
	s.candidateID = candidateID
}

// RehydrateSlot recreates a slot from persisted state.
func RehydrateSlot(
	id int64,
	ownerID, locationID int64,
	start time.Time,
	duration time.Duration,
	timezone string,
	status Status,
	purpose Purpose,
	candidateID int64,
	capacity int,
	createdAt, updatedAt time.Time,
) *Slot {
	return &Slot{
		BaseEntity:  sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		ownerID:     ownerID,
		locationID:  locationID,
		start:       start.UTC(),
		duration:    duration,
		timezone:    timezone,
		status:      status,
		purpose:     purpose,
		candidateID: candidateID,
		capacity:    capacity,
	}
}
