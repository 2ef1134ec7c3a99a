package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func validSlotParams() NewSlotParams {
	return NewSlotParams{
		OwnerID:    1,
		LocationID: 2,
		Start:      time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		Duration:   30 * time.Minute,
		Timezone:   "Europe/Berlin",
		Purpose:    PurposeInterview,
	}
}

func TestNewSlot(t *testing.T) {
	slot, err := NewSlot(validSlotParams(), testNow)
	require.NoError(t, err)

	assert.True(t, slot.IsNew())
	assert.Equal(t, StatusFree, slot.Status())
	assert.Equal(t, DefaultCapacity, slot.Capacity())
	assert.Equal(t, time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC), slot.End())
	assert.False(t, slot.HasCandidate())
	assert.Equal(t, testNow, slot.CreatedAt())
}

func TestNewSlot_TruncatesToMinute(t *testing.T) {
	p := validSlotParams()
	p.Start = time.Date(2026, 5, 4, 10, 0, 42, 500, time.UTC)

	slot, err := NewSlot(p, testNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC), slot.Start())
}

func TestNewSlot_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *NewSlotParams)
		field  string
	}{
		{"missing owner", func(p *NewSlotParams) { p.OwnerID = 0 }, "owner_id"},
		{"missing location", func(p *NewSlotParams) { p.LocationID = 0 }, "location_id"},
		{"zero start", func(p *NewSlotParams) { p.Start = time.Time{} }, "start"},
		{"too short", func(p *NewSlotParams) { p.Duration = 5 * time.Minute }, "duration"},
		{"too long", func(p *NewSlotParams) { p.Duration = 9 * time.Hour }, "duration"},
		{"fractional minutes", func(p *NewSlotParams) { p.Duration = 30*time.Minute + time.Second }, "duration"},
		{"empty timezone", func(p *NewSlotParams) { p.Timezone = "" }, "timezone"},
		{"unknown timezone", func(p *NewSlotParams) { p.Timezone = "Mars/Olympus" }, "timezone"},
		{"unknown purpose", func(p *NewSlotParams) { p.Purpose = "party" }, "purpose"},
		{"negative capacity", func(p *NewSlotParams) { p.Capacity = -1 }, "capacity"},
		{"unknown status", func(p *NewSlotParams) { p.Status = "ARCHIVED" }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validSlotParams()
			tt.mutate(&p)

			_, err := NewSlot(p, testNow)
			require.ErrorIs(t, err, ErrValidation)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestValidateDuration_Bounds(t *testing.T) {
	assert.NoError(t, ValidateDuration(MinSlotDuration))
	assert.NoError(t, ValidateDuration(MaxSlotDuration))
	assert.Error(t, ValidateDuration(MinSlotDuration-time.Minute))
	assert.Error(t, ValidateDuration(MaxSlotDuration+time.Minute))
}

func TestSlot_LocalDate(t *testing.T) {
	p := validSlotParams()
	// 23:30 UTC is already the next day in Berlin.
	p.Start = time.Date(2026, 5, 4, 23, 30, 0, 0, time.UTC)
	slot, err := NewSlot(p, testNow)
	require.NoError(t, err)

	assert.Equal(t, "2026-05-05", slot.LocalDate())
}

func TestSlot_HoldAndRelease(t *testing.T) {
	slot, err := NewSlot(validSlotParams(), testNow)
	require.NoError(t, err)

	require.NoError(t, slot.Hold(9, testNow.Add(time.Minute)))
	assert.Equal(t, StatusPending, slot.Status())
	assert.Equal(t, int64(9), slot.CandidateID())
	assert.Equal(t, testNow.Add(time.Minute), slot.UpdatedAt())

	// A held slot cannot be held again.
	err = slot.Hold(10, testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, slot.TransitionTo(StatusFree, testNow))
	assert.Equal(t, StatusFree, slot.Status())
	assert.False(t, slot.HasCandidate())
}

func TestSlot_TransitionTo_RejectsAndKeepsState(t *testing.T) {
	slot, err := NewSlot(validSlotParams(), testNow)
	require.NoError(t, err)

	err = slot.TransitionTo(StatusConfirmed, testNow.Add(time.Hour))
	require.ErrorIs(t, err, ErrStateConflict)
	assert.Equal(t, StatusFree, slot.Status())
	assert.Equal(t, testNow, slot.UpdatedAt())
}

func TestSlot_Overlaps(t *testing.T) {
	a, err := NewSlot(validSlotParams(), testNow)
	require.NoError(t, err)

	p := validSlotParams()
	p.Start = a.End()
	adjacent, err := NewSlot(p, testNow)
	require.NoError(t, err)

	p.Start = a.Start().Add(15 * time.Minute)
	overlapping, err := NewSlot(p, testNow)
	require.NoError(t, err)

	assert.False(t, a.Overlaps(adjacent))
	assert.True(t, a.Overlaps(overlapping))
	assert.True(t, overlapping.Overlaps(a))
}

func TestOverlapError(t *testing.T) {
	err := &OverlapError{OwnerID: 1, Start: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	assert.ErrorIs(t, err, ErrOverlap)
	assert.Contains(t, err.Error(), "owner 1")
	assert.Contains(t, err.Error(), "2026-05-04T10:00:00Z")
}
