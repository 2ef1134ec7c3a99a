package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// retryNotification re-arms a failed notification for delivery.
func (s *Server) retryNotification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	n, err := s.handlers.Operator.RetryFailed(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newNotificationView(n))
}
