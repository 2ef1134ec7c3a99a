package domain

// Status is the lifecycle state of a slot.
type Status string

const (
	StatusFree                 Status = "FREE"
	StatusPending              Status = "PENDING"
	StatusBooked               Status = "BOOKED"
	StatusConfirmed            Status = "CONFIRMED"
	StatusConfirmedByCandidate Status = "CONFIRMED_BY_CANDIDATE"
	StatusCanceled             Status = "CANCELED"
)

// slotTransitions lists the non-trivial edges; every known status may also
// transition to itself.
var slotTransitions = map[Status][]Status{
	StatusFree:                 {StatusPending},
	StatusPending:              {StatusBooked, StatusFree, StatusCanceled},
	StatusBooked:               {StatusConfirmed, StatusFree, StatusCanceled},
	StatusConfirmed:            {StatusFree, StatusCanceled},
	StatusConfirmedByCandidate: {StatusFree, StatusCanceled},
	StatusCanceled:             nil,
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := slotTransitions[s]
	return ok
}

// IsHeld reports whether a candidate occupies the slot.
func (s Status) IsHeld() bool {
	switch s {
	case StatusPending, StatusBooked, StatusConfirmed, StatusConfirmedByCandidate:
		return true
	}
	return false
}

// CanTransitionTo reports whether the edge s -> target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	if !s.IsValid() || !target.IsValid() {
		return false
	}
	if s == target {
		return true
	}
	for _, next := range slotTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// EnforceTransition returns target when current -> target is allowed and an
// *InvalidTransitionError otherwise.
func EnforceTransition(current, target Status) (Status, error) {
	if !current.CanTransitionTo(target) {
		return current, &InvalidTransitionError{From: current, To: target}
	}
	return target, nil
}
