package cli

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/slotwise/adapter/api"
	internalApp "github.com/felixgeelhaar/slotwise/internal/app"
	notifApp "github.com/felixgeelhaar/slotwise/internal/notifications/application"
	"github.com/felixgeelhaar/slotwise/internal/notifications/infrastructure/dispatch"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/pkg/config"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

// ErrNotInitialized is returned by commands that need a database when the
// application could not be wired.
var ErrNotInitialized = errors.New("slotwise is not initialized; check DATABASE_URL or SQLITE_PATH")

// LockPurger removes expired reservation locks.
type LockPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// App holds the CLI application dependencies.
type App struct {
	Config *config.Config

	// Slot handlers
	CreateSlotHandler         *commands.CreateSlotHandler
	ListAvailableSlotsHandler *queries.ListAvailableSlotsHandler
	CleanupSlotsHandler       *commands.CleanupStaleSlotsHandler

	// Action tokens for confirm, reject and reschedule links.
	Tokens domain.ActionTokenStore

	// Outbox operations
	Operator   *notifApp.Operator
	Dispatcher *dispatch.Dispatcher

	// Locks is nil when reservation locks live in Redis, which expires them
	// itself.
	Locks LockPurger

	API     *api.Server
	Health  *observability.HealthRegistry
	Migrate func(ctx context.Context) error
}

// NewApp wires the CLI and its HTTP API from an initialised container.
func NewApp(c *internalApp.Container) *App {
	a := &App{
		Config:                    c.Config,
		CreateSlotHandler:         c.CreateSlotHandler,
		ListAvailableSlotsHandler: c.ListAvailableSlotsHandler,
		CleanupSlotsHandler:       c.CleanupSlotsHandler,
		Tokens:                    c.ActionTokenRepo,
		Operator:                  c.Operator,
		Dispatcher:                c.Dispatcher,
		Health:                    c.Health,
		Migrate:                   c.Migrate,
	}
	if c.Config.ReservationLockBackend != "redis" {
		a.Locks = c.DBLockRepo
	}

	serverCfg := api.DefaultServerConfig()
	if c.Config.HTTPAddr != "" {
		serverCfg.Addr = c.Config.HTTPAddr
	}
	serverCfg.RateLimit = c.Config.HTTPRateLimit
	a.API = api.NewServer(serverCfg, api.Handlers{
		CreateSlot:         c.CreateSlotHandler,
		ReserveSlot:        c.ReserveSlotHandler,
		ReleaseSlot:        c.ReleaseSlotHandler,
		ApproveSlot:        c.ApproveSlotHandler,
		ConfirmSlot:        c.ConfirmSlotHandler,
		CancelSlot:         c.CancelSlotHandler,
		ListSlots:          c.ListAvailableSlotsHandler,
		ActiveAssignment:   c.GetActiveAssignmentHandler,
		OfferAssignment:    c.OfferAssignmentHandler,
		ConfirmAssignment:  c.ConfirmAssignmentHandler,
		RejectAssignment:   c.RejectAssignmentHandler,
		CompleteAssignment: c.CompleteAssignmentHandler,
		CancelAssignment:   c.CancelAssignmentHandler,
		RequestReschedule:  c.RequestRescheduleHandler,
		ApproveReschedule:  c.ApproveRescheduleHandler,
		DeclineReschedule:  c.DeclineRescheduleHandler,
		Operator:           c.Operator,
	}, c.Health, c.Logger.With("component", "api"))
	return a
}

var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

// RequireApp returns the application or ErrNotInitialized.
func RequireApp() (*App, error) {
	if app == nil {
		return nil, ErrNotInitialized
	}
	return app, nil
}
