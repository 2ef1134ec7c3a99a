package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

const (
	headerRequestID     = "X-Request-ID"
	headerCorrelationID = "X-Correlation-ID"
)

// requestContext attaches request and correlation ids to the request context
// and echoes them in the response. A caller-supplied correlation id is kept.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := observability.NewRequestContext(c.Request.Context(), c.GetHeader(headerCorrelationID))
		c.Request = c.Request.WithContext(ctx)
		c.Header(headerRequestID, observability.RequestIDFromContext(ctx))
		c.Header(headerCorrelationID, observability.CorrelationIDFromContext(ctx))
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// rateLimit keeps one token bucket per client IP.
func rateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*rate.Limiter)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		mu.Lock()
		lim, ok := buckets[ip]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(rps), burst)
			buckets[ip] = lim
		}
		mu.Unlock()
		if !lim.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
