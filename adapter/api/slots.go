package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// defaultListWindow is used when a listing gives no "to".
const defaultListWindow = 14 * 24 * time.Hour

type createSlotReq struct {
	OwnerID     int64     `json:"owner_id" binding:"required"`
	LocationID  int64     `json:"location_id" binding:"required"`
	Start       time.Time `json:"start" binding:"required"`
	DurationMin int       `json:"duration_min" binding:"required"`
	Timezone    string    `json:"timezone" binding:"required"`
	Purpose     string    `json:"purpose"`
	Capacity    int       `json:"capacity"`
}

func (s *Server) createSlot(c *gin.Context) {
	var req createSlotReq
	if !bindJSON(c, &req) {
		return
	}
	slot, err := s.handlers.CreateSlot.Handle(c.Request.Context(), commands.CreateSlotCommand{
		OwnerID:    req.OwnerID,
		LocationID: req.LocationID,
		Start:      req.Start,
		Duration:   time.Duration(req.DurationMin) * time.Minute,
		Timezone:   req.Timezone,
		Purpose:    domain.Purpose(req.Purpose),
		Capacity:   req.Capacity,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slotView(slot))
}

type reserveSlotReq struct {
	CandidateID  int64  `json:"candidate_id" binding:"required"`
	OwnerID      int64  `json:"owner_id"`
	LocationID   int64  `json:"location_id"`
	Purpose      string `json:"purpose"`
	AllowReplace bool   `json:"allow_replace"`
}

type reserveSlotResp struct {
	Outcome        domain.ReserveOutcome `json:"outcome"`
	Slot           *queries.SlotView     `json:"slot,omitempty"`
	ReplacedSlotID int64                 `json:"replaced_slot_id,omitempty"`
}

func (s *Server) reserveSlot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reserveSlotReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.handlers.ReserveSlot.Handle(c.Request.Context(), commands.ReserveSlotCommand{
		SlotID:             id,
		CandidateID:        req.CandidateID,
		ExpectedOwnerID:    req.OwnerID,
		ExpectedLocationID: req.LocationID,
		Purpose:            domain.Purpose(req.Purpose),
		AllowReplace:       req.AllowReplace,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(reserveStatus(res.Outcome), reserveSlotResp{
		Outcome:        res.Outcome,
		Slot:           slotView(res.Slot),
		ReplacedSlotID: res.ReplacedSlotID,
	})
}

func reserveStatus(o domain.ReserveOutcome) int {
	switch o {
	case domain.ReserveReserved:
		return http.StatusOK
	case domain.ReserveNotFound:
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

type releaseSlotReq struct {
	OwnerID     int64 `json:"owner_id" binding:"required"`
	CandidateID int64 `json:"candidate_id"`
}

func (s *Server) releaseSlot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req releaseSlotReq
	if !bindJSON(c, &req) {
		return
	}
	slot, err := s.handlers.ReleaseSlot.Handle(c.Request.Context(), commands.ReleaseSlotCommand{
		SlotID:      id,
		OwnerID:     req.OwnerID,
		CandidateID: req.CandidateID,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotView(slot))
}

type ownerReq struct {
	OwnerID int64 `json:"owner_id" binding:"required"`
}

type slotAction interface {
	Handle(ctx context.Context, cmd commands.SlotActionCommand) (*domain.Slot, error)
}

func (s *Server) slotAction(c *gin.Context, h slotAction) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ownerReq
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.Handle(c.Request.Context(), commands.SlotActionCommand{SlotID: id, OwnerID: req.OwnerID})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slotView(slot))
}

func (s *Server) approveSlot(c *gin.Context) { s.slotAction(c, s.handlers.ApproveSlot) }
func (s *Server) confirmSlot(c *gin.Context) { s.slotAction(c, s.handlers.ConfirmSlot) }
func (s *Server) cancelSlot(c *gin.Context) { s.slotAction(c, s.handlers.CancelSlot) }

// listSlots answers GET /v1/owners/:id/slots?from=&to= with RFC 3339 bounds.
func (s *Server) listSlots(c *gin.Context) {
	ownerID, ok := pathID(c)
	if !ok {
		return
	}
	from, err := timeQuery(c, "from", time.Now().UTC())
	if err != nil {
		badRequest(c, "invalid from")
		return
	}
	to, err := timeQuery(c, "to", from.Add(defaultListWindow))
	if err != nil {
		badRequest(c, "invalid to")
		return
	}
	views, err := s.handlers.ListSlots.Handle(c.Request.Context(), queries.ListAvailableSlotsQuery{
		OwnerID: ownerID,
		From:    from,
		To:      to,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": views, "count": len(views)})
}

func timeQuery(c *gin.Context, key string, def time.Time) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, v)
}
