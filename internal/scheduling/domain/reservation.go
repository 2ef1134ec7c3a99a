package domain

import (
	"context"
	"fmt"
	"time"
)

// ReserveOutcome tags the expected results of a reservation attempt.
type ReserveOutcome string

const (
	ReserveReserved           ReserveOutcome = "reserved"
	ReserveSlotTaken          ReserveOutcome = "slot_taken"
	ReserveDuplicateCandidate ReserveOutcome = "duplicate_candidate"
	ReserveNotFound           ReserveOutcome = "not_found"
)

// ReserveResult is the outcome of a reservation. Slot is set when the
// outcome is ReserveReserved.
type ReserveResult struct {
	Outcome        ReserveOutcome
	Slot           *Slot
	ReplacedSlotID int64
}

// Reserved reports whether the candidate now holds the slot.
func (r ReserveResult) Reserved() bool { return r.Outcome == ReserveReserved }

// Message is the user-facing reason for the outcome.
func (r ReserveResult) Message() string {
	switch r.Outcome {
	case ReserveReserved:
		return "slot reserved"
	case ReserveSlotTaken:
		return "slot no longer available"
	case ReserveDuplicateCandidate:
		return "candidate already has a reservation with this recruiter"
	case ReserveNotFound:
		return "slot not found"
	}
	return string(r.Outcome)
}

// LockKey identifies a reservation attempt of one candidate with one owner on
// one day.
type LockKey struct {
	CandidateID int64
	OwnerID     int64
	Date        string
}

func (k LockKey) String() string {
	return fmt.Sprintf("reservation:%d:%d:%s", k.CandidateID, k.OwnerID, k.Date)
}

// ReservationLock is the advisory guard that collapses concurrent attempts of
// the same candidate. Storage constraints stay authoritative.
type ReservationLock interface {
	// Acquire takes the lock under token. It returns false when an unexpired
	// lock is held by another token.
	Acquire(ctx context.Context, key LockKey, token string, ttl time.Duration) (bool, error)

	// Release drops the lock only if it is still held under token.
	Release(ctx context.Context, key LockKey, token string) error
}
