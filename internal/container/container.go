// Package container wires configuration into running components and owns
// their startup and shutdown order.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MiguelValor/shopify-automator/internal/application/dispatcher"
	"github.com/MiguelValor/shopify-automator/internal/application/executor"
	"github.com/MiguelValor/shopify-automator/internal/application/optimizer"
	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/application/service"
	"github.com/MiguelValor/shopify-automator/internal/config"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/external/shopify"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/metrics"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/persistence/repository"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/report"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/tracing"
	"github.com/MiguelValor/shopify-automator/internal/infrastructure/worker"
	httpapi "github.com/MiguelValor/shopify-automator/internal/interfaces/http"
	"github.com/MiguelValor/shopify-automator/pkg/database"
	"github.com/MiguelValor/shopify-automator/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config  *config.Config
	logger  *zap.Logger
	kv      *utils.KVLogger
	version string

	withWorkers bool

	// Infrastructure
	tracingShutdown tracing.ShutdownFunc
	db              *database.DB
	repo            port.ApprovalRepository
	commerce        *shopify.Client
	notifier        port.ReviewNotifier
	redis           *goredis.Client
	metrics         *metrics.Metrics

	// Application
	dispatcher    dispatcher.Dispatcher
	executor      *executor.Registry
	manager       service.ApprovalManager
	notifications service.NotificationService
	optimizer     *optimizer.SEOOptimizer
	exporter      *report.ExcelExporter

	workers *worker.WorkerManager

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// Option configures the container
type Option func(*Container)

// WithoutWorkers skips background workers, for one-shot commands
func WithoutWorkers() Option {
	return func(c *Container) {
		c.withWorkers = false
	}
}

// WithVersion sets the version reported in traces
func WithVersion(v string) Option {
	return func(c *Container) {
		c.version = v
	}
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components; call Start.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config:      cfg,
		logger:      logger,
		kv:          utils.NewKVLogger(logger),
		withWorkers: true,
		version:     "dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components:
// tracing, database, external clients, application services, then workers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	if err := c.initTracing(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := c.initExternalClients(ctx); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := c.initWorkers(ctx); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started",
		zap.String("database_driver", c.config.Database.Driver),
		zap.Strings("action_types", c.executor.ActionTypes()),
		zap.Bool("optimizer", c.optimizer != nil),
		zap.Bool("workers", c.withWorkers))
	return nil
}

// Close shuts components down in reverse order of Start
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	if c.tracingShutdown != nil {
		if err := c.tracingShutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		for _, err := range errs {
			c.logger.Error("Close failed", zap.Error(err))
		}
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	if c.db == nil {
		set("database", fmt.Errorf("not initialized"))
	} else {
		set("database", c.db.PingContext(ctx))
	}

	if c.redis != nil {
		set("redis", c.redis.Ping(ctx).Err())
	}

	if c.withWorkers && c.config.Approval.SweepEnabled {
		if c.workers == nil || !c.workers.IsRunning() {
			set("workers", fmt.Errorf("not running"))
		} else {
			set("workers", nil)
		}
	}

	return status
}

func (c *Container) initTracing(ctx context.Context) error {
	shutdown, err := tracing.Init(ctx, tracing.Config{
		Enabled:     c.config.Tracing.Enabled,
		ServiceName: c.config.Server.ServiceName,
		Version:     c.version,
		OutputPath:  c.config.Tracing.OutputPath,
		SampleRatio: c.config.Tracing.SampleRatio,
	}, c.logger)
	if err != nil {
		return err
	}
	c.tracingShutdown = shutdown
	return nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	db, err := ProvideDatabase(ctx, c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = db
	c.repo = repository.NewApprovalRepository(db.DB, c.logger)
	return nil
}

func (c *Container) initExternalClients(ctx context.Context) error {
	c.commerce = ProvideCommerceClient(c.config.Shopify, c.logger)
	c.notifier = ProvideNotifier(c.config.Lark, c.logger)

	rdb, err := ProvideRedis(ctx, c.config.Redis)
	if err != nil {
		return err
	}
	c.redis = rdb
	return nil
}

func (c *Container) initServices() error {
	c.dispatcher = dispatcher.NewDispatcher(dispatcher.WithLogger(c.kv))

	c.metrics = ProvideMetrics()
	c.metrics.Register(c.dispatcher)

	c.executor = executor.NewCommerceRegistry(c.commerce, c.kv)
	c.manager = service.NewApprovalManager(c.repo, c.executor, c.kv,
		service.WithDispatcher(c.dispatcher),
		service.WithTTL(c.config.Approval.TTL),
	)

	c.notifications = service.NewNotificationService(c.repo, c.notifier, c.kv)
	c.notifications.Register(c.dispatcher)

	if c.config.OptimizerEnabled() {
		generator, err := ProvideSEOGenerator(c.config.OpenAI, c.logger)
		if err != nil {
			return err
		}
		c.optimizer = optimizer.NewSEOOptimizer(generator, c.commerce, c.manager, c.kv)
	} else {
		c.logger.Info("OpenAI not configured, SEO optimization disabled")
	}

	c.exporter = report.NewExcelExporter(c.logger)
	return nil
}

func (c *Container) initWorkers(ctx context.Context) error {
	if !c.withWorkers {
		return nil
	}
	c.workers = ProvideWorkers(c.manager, c.redis, c.config, c.logger)
	return c.workers.StartAll(ctx)
}

// HTTPServer builds the HTTP adapter over the container's services
func (c *Container) HTTPServer() *httpapi.Server {
	deps := httpapi.Dependencies{
		Manager:  c.manager,
		Exporter: c.exporter,
		Metrics:  c.metrics,
	}
	if c.optimizer != nil {
		deps.Optimizer = c.optimizer
	}

	return httpapi.NewServer(httpapi.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
		ServiceName:  c.config.Server.ServiceName,
		CORSOrigins:  c.config.Server.CORSOrigins,
	}, deps, c.kv)
}

// Manager returns the approval manager.
func (c *Container) Manager() service.ApprovalManager {
	return c.manager
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
