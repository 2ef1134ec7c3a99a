package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
)

type assignmentResp struct {
	Assignment *assignmentView   `json:"assignment"`
	Slot       *queries.SlotView `json:"slot,omitempty"`
}

func newAssignmentResp(res *commands.AssignmentResult) assignmentResp {
	return assignmentResp{
		Assignment: newAssignmentView(res.Assignment),
		Slot:       slotView(res.Slot),
	}
}

type offerAssignmentReq struct {
	SlotID      int64 `json:"slot_id" binding:"required"`
	CandidateID int64 `json:"candidate_id" binding:"required"`
	OwnerID     int64 `json:"owner_id" binding:"required"`
}

func (s *Server) offerAssignment(c *gin.Context) {
	var req offerAssignmentReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.handlers.OfferAssignment.Handle(c.Request.Context(), commands.OfferAssignmentCommand{
		SlotID:      req.SlotID,
		CandidateID: req.CandidateID,
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAssignmentResp(res))
}

type tokenReq struct {
	Token string `json:"token" binding:"required"`
}

func (s *Server) confirmAssignment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req tokenReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.handlers.ConfirmAssignment.Handle(c.Request.Context(), commands.AssignmentTokenCommand{AssignmentID: id, Token: req.Token})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAssignmentResp(res))
}

func (s *Server) rejectAssignment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req tokenReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.handlers.RejectAssignment.Handle(c.Request.Context(), commands.AssignmentTokenCommand{AssignmentID: id, Token: req.Token})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAssignmentResp(res))
}

func (s *Server) completeAssignment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ownerReq
	if !bindJSON(c, &req) {
		return
	}
	a, err := s.handlers.CompleteAssignment.Handle(c.Request.Context(), commands.AssignmentActionCommand{AssignmentID: id, OwnerID: req.OwnerID})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignmentResp{Assignment: newAssignmentView(a)})
}

func (s *Server) cancelAssignment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ownerReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.handlers.CancelAssignment.Handle(c.Request.Context(), commands.AssignmentActionCommand{AssignmentID: id, OwnerID: req.OwnerID})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAssignmentResp(res))
}

func (s *Server) activeAssignment(c *gin.Context) {
	candidateID, ok := pathID(c)
	if !ok {
		return
	}
	view, err := s.handlers.ActiveAssignment.Handle(c.Request.Context(), queries.GetActiveAssignmentQuery{CandidateID: candidateID})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active assignment"})
		return
	}
	c.JSON(http.StatusOK, view)
}

type requestRescheduleReq struct {
	Token          string    `json:"token" binding:"required"`
	RequestedStart time.Time `json:"requested_start" binding:"required"`
	DurationMin    int       `json:"duration_min"`
	Comment        string    `json:"comment"`
}

func (s *Server) requestReschedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req requestRescheduleReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := s.handlers.RequestReschedule.Handle(c.Request.Context(), commands.RequestRescheduleCommand{
		AssignmentID:   id,
		Token:          req.Token,
		RequestedStart: req.RequestedStart,
		Duration:       time.Duration(req.DurationMin) * time.Minute,
		Comment:        req.Comment,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRescheduleView(r))
}

type rescheduleResp struct {
	Request        *rescheduleView   `json:"request"`
	Assignment     *assignmentView   `json:"assignment,omitempty"`
	Slot           *queries.SlotView `json:"slot,omitempty"`
	PreviousSlotID int64             `json:"previous_slot_id,omitempty"`
}

func (s *Server) approveReschedule(c *gin.Context) {
	s.decideReschedule(c, s.handlers.ApproveReschedule.Handle)
}

func (s *Server) declineReschedule(c *gin.Context) {
	s.decideReschedule(c, s.handlers.DeclineReschedule.Handle)
}

type rescheduleDecision func(ctx context.Context, cmd commands.RescheduleDecisionCommand) (*commands.RescheduleResult, error)

func (s *Server) decideReschedule(c *gin.Context, decide rescheduleDecision) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ownerReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := decide(c.Request.Context(), commands.RescheduleDecisionCommand{RequestID: id, OwnerID: req.OwnerID})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rescheduleResp{
		Request:        newRescheduleView(res.Request),
		Assignment:     newAssignmentView(res.Assignment),
		Slot:           slotView(res.Slot),
		PreviousSlotID: res.PreviousSlotID,
	})
}
