// Package api provides the HTTP API for booking and operator actions.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	notifApp "github.com/felixgeelhaar/slotwise/internal/notifications/application"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

// Handlers are the application handlers served over HTTP.
type Handlers struct {
	CreateSlot       *commands.CreateSlotHandler
	ReserveSlot      *commands.ReserveSlotHandler
	ReleaseSlot      *commands.ReleaseSlotHandler
	ApproveSlot      *commands.ApproveSlotHandler
	ConfirmSlot      *commands.ConfirmSlotHandler
	CancelSlot       *commands.CancelSlotHandler
	ListSlots        *queries.ListAvailableSlotsHandler
	ActiveAssignment *queries.GetActiveAssignmentHandler

	OfferAssignment    *commands.OfferAssignmentHandler
	ConfirmAssignment  *commands.ConfirmAssignmentHandler
	RejectAssignment   *commands.RejectAssignmentHandler
	CompleteAssignment *commands.CompleteAssignmentHandler
	CancelAssignment   *commands.CancelAssignmentHandler

	RequestReschedule *commands.RequestRescheduleHandler
	ApproveReschedule *commands.ApproveRescheduleHandler
	DeclineReschedule *commands.DeclineRescheduleHandler

	Operator *notifApp.Operator
}

// Server is the HTTP API server.
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	logger   *slog.Logger
	handlers Handlers
	health   *observability.HealthRegistry
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// RateLimit is the per-client request rate; zero disables limiting.
	RateLimit float64
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		RateLimit:    10,
	}
}

// NewServer creates a new API server. health may be nil.
func NewServer(cfg ServerConfig, handlers Handlers, health *observability.HealthRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = observability.NewHealthRegistry()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestContext(), requestLogger(logger))
	if cfg.RateLimit > 0 {
		engine.Use(rateLimit(cfg.RateLimit, max(int(cfg.RateLimit), 1)))
	}

	s := &Server{
		engine:   engine,
		logger:   logger,
		handlers: handlers,
		health:   health,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/slots", s.createSlot)
		v1.POST("/slots/:id/reserve", s.reserveSlot)
		v1.POST("/slots/:id/release", s.releaseSlot)
		v1.POST("/slots/:id/approve", s.approveSlot)
		v1.POST("/slots/:id/confirm", s.confirmSlot)
		v1.POST("/slots/:id/cancel", s.cancelSlot)
		v1.GET("/owners/:id/slots", s.listSlots)

		v1.POST("/assignments", s.offerAssignment)
		v1.POST("/assignments/:id/confirm", s.confirmAssignment)
		v1.POST("/assignments/:id/reject", s.rejectAssignment)
		v1.POST("/assignments/:id/reschedule", s.requestReschedule)
		v1.POST("/assignments/:id/complete", s.completeAssignment)
		v1.POST("/assignments/:id/cancel", s.cancelAssignment)
		v1.GET("/candidates/:id/assignment", s.activeAssignment)

		v1.POST("/reschedules/:id/approve", s.approveReschedule)
		v1.POST("/reschedules/:id/decline", s.declineReschedule)

		v1.POST("/outbox/:id/retry", s.retryNotification)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	report := s.health.Check(ctx)
	status := http.StatusOK
	if report.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}
