package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	notifApp "github.com/felixgeelhaar/slotwise/internal/notifications/application"
	notifDomain "github.com/felixgeelhaar/slotwise/internal/notifications/domain"
	"github.com/felixgeelhaar/slotwise/internal/notifications/infrastructure/channel"
	"github.com/felixgeelhaar/slotwise/internal/notifications/infrastructure/dispatch"
	notifPersistence "github.com/felixgeelhaar/slotwise/internal/notifications/infrastructure/persistence"
	"github.com/felixgeelhaar/slotwise/internal/notifications/infrastructure/template"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	schedulingDomain "github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/cache"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/lock"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/persistence"
	sharedDomain "github.com/felixgeelhaar/slotwise/internal/shared/domain"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/broker"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/slotwise/pkg/config"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  sharedDomain.Clock

	// Database
	DBConn     database.Connection
	UnitOfWork *database.UnitOfWork

	// Redis, nil unless REDIS_URL is set.
	RedisClient *redis.Client

	// Repositories
	SlotRepo        *persistence.SlotRepository
	AssignmentRepo  *persistence.AssignmentRepository
	RescheduleRepo  *persistence.RescheduleRequestRepository
	ActionTokenRepo *persistence.ActionTokenRepository
	DBLockRepo      *persistence.ReservationLockRepository
	OutboxRepo      *notifPersistence.OutboxRepository
	LogRepo         *notifPersistence.LogRepository

	// Scheduling infrastructure
	ReservationLock   schedulingDomain.ReservationLock
	AvailabilityCache queries.AvailabilityCache

	// Notifications
	Writer     *notifApp.Writer
	Operator   *notifApp.Operator
	Broker     broker.Broker
	Renderer   notifDomain.Renderer
	Channel    *channel.BreakerChannel
	Dispatcher *dispatch.Dispatcher

	// Slot command handlers
	CreateSlotHandler   *commands.CreateSlotHandler
	ReserveSlotHandler  *commands.ReserveSlotHandler
	ReleaseSlotHandler  *commands.ReleaseSlotHandler
	ApproveSlotHandler  *commands.ApproveSlotHandler
	ConfirmSlotHandler  *commands.ConfirmSlotHandler
	CancelSlotHandler   *commands.CancelSlotHandler
	CleanupSlotsHandler *commands.CleanupStaleSlotsHandler

	// Assignment command handlers
	OfferAssignmentHandler    *commands.OfferAssignmentHandler
	ConfirmAssignmentHandler  *commands.ConfirmAssignmentHandler
	RejectAssignmentHandler   *commands.RejectAssignmentHandler
	CompleteAssignmentHandler *commands.CompleteAssignmentHandler
	CancelAssignmentHandler   *commands.CancelAssignmentHandler

	// Reschedule command handlers
	RequestRescheduleHandler *commands.RequestRescheduleHandler
	ApproveRescheduleHandler *commands.ApproveRescheduleHandler
	DeclineRescheduleHandler *commands.DeclineRescheduleHandler

	// Query handlers
	ListAvailableSlotsHandler  *queries.ListAvailableSlotsHandler
	GetActiveAssignmentHandler *queries.GetActiveAssignmentHandler

	Health *observability.HealthRegistry

	kafka       *channel.KafkaChannel
	mu          sync.Mutex
	initialized bool
}

// New creates an uninitialised container. Call Init before use.
func New(cfg *config.Config, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		Config: cfg,
		Logger: logger,
		Clock:  sharedDomain.SystemClock{},
		Health: observability.NewHealthRegistry(),
	}
}

// NewContainer creates and initialises a container.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := New(cfg, logger)
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Init connects the stores, applies pending migrations and wires every
// handler. Backends are chosen by the config. Init is idempotent; a failed
// Init releases what it opened and may be retried.
func (c *Container) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}

	if err := c.connectDatabase(ctx); err != nil {
		return err
	}
	if err := c.connectRedis(ctx); err != nil {
		c.closeResources()
		return err
	}

	cfg, logger := c.Config, c.Logger
	c.SlotRepo = persistence.NewSlotRepository(c.DBConn)
	c.AssignmentRepo = persistence.NewAssignmentRepository(c.DBConn)
	c.RescheduleRepo = persistence.NewRescheduleRequestRepository(c.DBConn)
	c.ActionTokenRepo = persistence.NewActionTokenRepository(c.DBConn, c.Clock)
	c.DBLockRepo = persistence.NewReservationLockRepository(c.DBConn, c.Clock)
	c.OutboxRepo = notifPersistence.NewOutboxRepository(c.DBConn)
	c.LogRepo = notifPersistence.NewLogRepository(c.DBConn)

	switch cfg.ReservationLockBackend {
	case "redis":
		c.ReservationLock = lock.NewRedisLock(c.RedisClient)
	default:
		c.ReservationLock = c.DBLockRepo
	}
	if c.RedisClient != nil {
		c.AvailabilityCache = cache.NewRedisAvailabilityCache(c.RedisClient, cfg.AvailabilityCacheTTL, logger)
	}

	c.Writer = notifApp.NewWriter(c.OutboxRepo, c.UnitOfWork, c.Clock, logger)
	c.Operator = notifApp.NewOperator(c.OutboxRepo, c.Clock, logger)

	if err := c.wireDelivery(ctx); err != nil {
		c.closeResources()
		return err
	}
	c.wireHandlers()

	c.Health.Register("database", observability.PingChecker("database", true, c.DBConn.Ping))
	if c.RedisClient != nil {
		c.Health.Register("redis", observability.PingChecker("redis", true, func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		}))
	}

	c.initialized = true
	logger.Info("container ready",
		"database", c.DBConn.Driver().String(),
		"broker", cfg.BrokerBackend,
		"lock", cfg.ReservationLockBackend,
		"channel", cfg.DeliveryChannel,
		"cache", c.AvailabilityCache != nil,
	)
	return nil
}

func (c *Container) connectDatabase(ctx context.Context) error {
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.Driver(c.Config.DatabaseDriver),
		URL:        c.Config.DatabaseURL,
		SQLitePath: c.Config.SQLitePath,
		MaxConns:   c.Config.DatabaseMaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrations.Up(conn, c.Logger); err != nil {
		conn.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	c.DBConn = conn
	c.UnitOfWork = database.NewUnitOfWork(conn)
	c.Logger.Info("connected to database", "driver", conn.Driver().String())
	return nil
}

// Migrate applies pending migrations. Init already does this; the method
// exists for the migrate command and reports the resulting version.
func (c *Container) Migrate(ctx context.Context) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	return migrations.Up(c.DBConn, c.Logger)
}

// connectRedis is a no-op without REDIS_URL. A configured but unreachable
// Redis is an error because config.Validate only lets Redis backends through
// when a URL is present.
func (c *Container) connectRedis(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	c.RedisClient = client
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) wireDelivery(ctx context.Context) error {
	cfg := c.Config
	hostname, _ := os.Hostname()
	workerID := dispatch.WorkerIDFor(hostname, os.Getpid())

	switch broker.Backend(cfg.BrokerBackend) {
	case broker.BackendRedis:
		b, err := broker.NewRedisStreamBroker(ctx, c.RedisClient, broker.RedisStreamConfig{
			Stream:       "slotwise:notifications",
			Group:        "dispatch",
			Consumer:     workerID,
			LeaseTimeout: cfg.OutboxLease,
			Logger:       c.Logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis broker: %w", err)
		}
		c.Broker = b
	case broker.BackendRabbitMQ:
		b, err := broker.NewRabbitMQBroker(broker.RabbitMQConfig{
			URL:          cfg.RabbitMQURL,
			Queue:        "slotwise.notifications",
			LeaseTimeout: cfg.OutboxLease,
			Logger:       c.Logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create rabbitmq broker: %w", err)
		}
		c.Broker = b
	default:
		c.Broker = broker.NewMemoryBroker(cfg.OutboxLease)
	}

	renderer, err := template.NewTextRenderer()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	c.Renderer = renderer

	var transport notifDomain.Channel
	switch cfg.DeliveryChannel {
	case "kafka":
		k, err := channel.NewKafkaChannel(channel.KafkaConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			WriteTimeout: 10 * time.Second,
		}, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to create kafka channel: %w", err)
		}
		c.kafka = k
		transport = k
	default:
		transport = channel.NewLogChannel(c.Logger)
	}
	c.Channel = channel.NewBreakerChannel(transport, channel.BreakerConfig{
		Name:             cfg.DeliveryChannel,
		FailureThreshold: uint32(max(cfg.BreakerFailureThreshold, 1)),
		OpenTimeout:      cfg.BreakerOpenTimeout,
		HalfOpenRequests: 1,
	}, c.Logger)

	dcfg := dispatch.DefaultConfig()
	dcfg.WorkerID = workerID
	dcfg.PollInterval = cfg.OutboxPollInterval
	dcfg.BatchSize = cfg.OutboxBatchSize
	dcfg.RateLimitPerSec = cfg.OutboxRateLimit
	dcfg.Burst = max(int(cfg.OutboxRateLimit), 1)
	dcfg.WorkerConcurrency = cfg.OutboxWorkerConcurrency
	dcfg.MaxAttempts = cfg.OutboxMaxAttempts
	dcfg.RetryBaseDelay = cfg.OutboxRetryBaseDelay
	dcfg.RetryMaxDelay = cfg.OutboxRetryMaxDelay
	dcfg.LeaseDuration = cfg.OutboxLease

	c.Dispatcher = dispatch.NewDispatcher(dispatch.Dependencies{
		Outbox:   c.OutboxRepo,
		Logs:     c.LogRepo,
		UoW:      c.UnitOfWork,
		Broker:   c.Broker,
		Renderer: c.Renderer,
		Channel:  c.Channel,
		Clock:    c.Clock,
	}, dcfg, c.Logger.With("component", "dispatch"))
	return nil
}

func (c *Container) wireHandlers() {
	deps := commands.Dependencies{
		Slots:       c.SlotRepo,
		Assignments: c.AssignmentRepo,
		Reschedules: c.RescheduleRepo,
		Tokens:      c.ActionTokenRepo,
		Lock:        c.ReservationLock,
		Notifier:    c.Writer,
		Cache:       c.AvailabilityCache,
		UoW:         c.UnitOfWork,
		Clock:       c.Clock,
		LockTTL:     c.Config.ReservationLockTTL,
		Logger:      c.Logger,
	}

	c.CreateSlotHandler = commands.NewCreateSlotHandler(deps)
	c.ReserveSlotHandler = commands.NewReserveSlotHandler(deps)
	c.ReleaseSlotHandler = commands.NewReleaseSlotHandler(deps)
	c.ApproveSlotHandler = commands.NewApproveSlotHandler(deps)
	c.ConfirmSlotHandler = commands.NewConfirmSlotHandler(deps)
	c.CancelSlotHandler = commands.NewCancelSlotHandler(deps)
	c.CleanupSlotsHandler = commands.NewCleanupStaleSlotsHandler(deps)

	c.OfferAssignmentHandler = commands.NewOfferAssignmentHandler(deps)
	c.ConfirmAssignmentHandler = commands.NewConfirmAssignmentHandler(deps)
	c.RejectAssignmentHandler = commands.NewRejectAssignmentHandler(deps)
	c.CompleteAssignmentHandler = commands.NewCompleteAssignmentHandler(deps)
	c.CancelAssignmentHandler = commands.NewCancelAssignmentHandler(deps)

	c.RequestRescheduleHandler = commands.NewRequestRescheduleHandler(deps)
	c.ApproveRescheduleHandler = commands.NewApproveRescheduleHandler(deps)
	c.DeclineRescheduleHandler = commands.NewDeclineRescheduleHandler(deps)

	c.ListAvailableSlotsHandler = queries.NewListAvailableSlotsHandler(c.SlotRepo, c.AvailabilityCache, c.Logger)
	c.GetActiveAssignmentHandler = queries.NewGetActiveAssignmentHandler(c.AssignmentRepo, c.SlotRepo)
}

// Close stops the dispatcher and releases every connection.
func (c *Container) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Dispatcher != nil && c.Dispatcher.IsRunning() {
		c.Dispatcher.Stop()
		c.Logger.Info("dispatcher stopped")
	}
	if err := c.closeResources(); err != nil {
		c.Logger.Warn("error closing resources", "error", err)
		return
	}
	c.Logger.Info("resources closed")
}

func (c *Container) closeResources() error {
	var errs []error
	if c.Broker != nil {
		errs = append(errs, c.Broker.Close())
		c.Broker = nil
	}
	if c.kafka != nil {
		errs = append(errs, c.kafka.Close())
		c.kafka = nil
	}
	if c.RedisClient != nil {
		errs = append(errs, c.RedisClient.Close())
		c.RedisClient = nil
	}
	if c.DBConn != nil {
		errs = append(errs, c.DBConn.Close())
		c.DBConn = nil
	}
	c.initialized = false
	return errors.Join(errs...)
}
