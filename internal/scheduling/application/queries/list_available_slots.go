package queries

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// MaxListWindow bounds the range of a single availability query.
const MaxListWindow = 62 * 24 * time.Hour

// AvailabilityCache is a read-through cache of FREE slots per owner and
// window. It is never authoritative: reservations read the store, and slot
// writes invalidate the owner after commit.
type AvailabilityCache interface {
	Get(ctx context.Context, ownerID int64, from, to time.Time) ([]SlotView, bool, error)
	Set(ctx context.Context, ownerID int64, from, to time.Time, views []SlotView) error
	Invalidate(ctx context.Context, ownerID int64) error
}

// ListAvailableSlotsQuery selects the FREE slots of an owner starting in
// [From, To).
type ListAvailableSlotsQuery struct {
	OwnerID int64
	From    time.Time
	To      time.Time
}

// ListAvailableSlotsHandler handles ListAvailableSlotsQuery.
type ListAvailableSlotsHandler struct {
	slotRepo domain.SlotRepository
	cache    AvailabilityCache
	logger   *slog.Logger
}

// NewListAvailableSlotsHandler creates a new handler. cache may be nil.
func NewListAvailableSlotsHandler(slotRepo domain.SlotRepository, cache AvailabilityCache, logger *slog.Logger) *ListAvailableSlotsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListAvailableSlotsHandler{slotRepo: slotRepo, cache: cache, logger: logger}
}

// Handle executes the query.
func (h *ListAvailableSlotsHandler) Handle(ctx context.Context, q ListAvailableSlotsQuery) ([]SlotView, error) {
	if q.OwnerID <= 0 {
		return nil, &domain.ValidationError{Field: "owner_id", Reason: "must be positive"}
	}
	if !q.To.After(q.From) {
		return nil, &domain.ValidationError{Field: "to", Reason: "must be after from"}
	}
	if q.To.Sub(q.From) > MaxListWindow {
		return nil, &domain.ValidationError{Field: "to", Reason: "window too large"}
	}
	from, to := q.From.UTC(), q.To.UTC()

	if h.cache != nil {
		views, ok, err := h.cache.Get(ctx, q.OwnerID, from, to)
		if err != nil {
			h.logger.WarnContext(ctx, "availability cache read failed", "owner_id", q.OwnerID, "error", err)
		} else if ok {
			return views, nil
		}
	}

	slots, err := h.slotRepo.ListAvailable(ctx, q.OwnerID, from, to)
	if err != nil {
		return nil, err
	}
	views := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		views = append(views, NewSlotView(s))
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, q.OwnerID, from, to, views); err != nil {
			h.logger.WarnContext(ctx, "availability cache write failed", "owner_id", q.OwnerID, "error", err)
		}
	}
	return views, nil
}
