package container

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/helloviza/approvals/internal/application/dispatcher"
	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/application/service"
	"github.com/helloviza/approvals/internal/auth"
	"github.com/helloviza/approvals/internal/infrastructure/persistence/sqlite"
	"github.com/helloviza/approvals/internal/infrastructure/worker"
	httpapi "github.com/helloviza/approvals/internal/interfaces/http"
	"github.com/helloviza/approvals/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Coordination and storage
	lock        port.ActionLock
	redisClient *redis.Client
	fileStorage port.FileStorage

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle
	issuer     *auth.Issuer

	// Interfaces
	httpServer *httpapi.Server

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Request port.RequestRepository
	History port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Requests    service.RequestService
	Approver    service.ApproverService
	Admin       service.AdminService
	Attachments service.AttachmentService
	Export      service.ExportService
	Views       *service.ViewBuilder
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

type pinger interface {
	Ping(ctx context.Context) error
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins background processing.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. Action lock (Redis or in-process)
// 3. File storage
// 4. Event dispatcher
// 5. Application services and token issuer
// 6. Workers
// 7. HTTP server (constructed, not listening)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container is closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"lock", c.initLock},
		{"storage", c.initStorage},
		{"dispatcher", c.initDispatcher},
		{"services", c.initServices},
		{"workers", c.initWorkers},
		{"http server", c.initHTTPServer},
	}

	for i, step := range steps {
		if err := step.fn(); err != nil {
			c.logger.Error("Container start failed", zap.String("step", step.name), zap.Error(err))
			c.cancel()
			c.releasePartial()
			return fmt.Errorf("step %d (%s): %w", i+1, step.name, err)
		}
		c.logger.Info("Initialized component", zap.Int("step", i+1), zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started")
	return nil
}

// releasePartial frees what a failed Start already opened
func (c *Container) releasePartial() {
	if c.workers != nil && c.workers.IsRunning() {
		_ = c.workers.StopAll()
	}
	if c.dispatcher != nil {
		_ = c.dispatcher.Close()
	}
	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
	if c.database != nil {
		_ = c.database.Close()
	}
}

// Close tears components down in reverse order of Start.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	// HTTP server is stopped by whoever called Start on it
	if c.httpServer != nil {
		if err := c.httpServer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}

	if c.workers != nil && c.workers.IsRunning() {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		} else {
			c.logger.Info("Redis client closed")
		}
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	record := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	if c.sqlDB != nil {
		record("database", c.sqlDB.PingContext(ctx))
	} else {
		record("database", fmt.Errorf("not initialized"))
	}

	if c.lock == nil {
		record("lock", fmt.Errorf("not initialized"))
	} else if p, ok := c.lock.(pinger); ok {
		record("lock", p.Ping(ctx))
	} else {
		record("lock", nil)
	}

	if c.workers != nil && c.workers.IsRunning() {
		status.Components["workers"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("%d workers running", c.workers.GetWorkerCount()),
		}
	} else {
		record("workers", fmt.Errorf("not running"))
	}

	if c.dispatcher != nil {
		record("dispatcher", nil)
	} else {
		record("dispatcher", fmt.Errorf("not initialized"))
	}

	return status
}

// HealthCheck reports the first unhealthy component, if any.
func (c *Container) HealthCheck(ctx context.Context) error {
	if c.sqlDB == nil {
		return fmt.Errorf("database: not initialized")
	}
	if err := c.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if p, ok := c.lock.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("lock: %w", err)
		}
	}
	return nil
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = bundle.DB
	c.sqlDB = bundle.DB.DB
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initLock() error {
	bundle, err := ProvideLock(c.ctx, &c.config.Redis, c.logger)
	if err != nil {
		return err
	}
	c.lock = bundle.Lock
	c.redisClient = bundle.Client
	return nil
}

func (c *Container) initStorage() error {
	fs, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.fileStorage = fs
	return nil
}

func (c *Container) initDispatcher() error {
	d, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = d
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:         c.repositories,
		TxManager:     c.db,
		Lock:          c.lock,
		Storage:       c.fileStorage,
		Dispatcher:    c.dispatcher,
		MaxUploadSize: c.config.Storage.MaxUploadSize,
		Signal:        &c.config.Signal,
		Logger:        c.logger,
	}, &c.config.Redis)
	if err != nil {
		return err
	}
	c.services = services

	issuer, err := ProvideIssuer(&c.config.Auth)
	if err != nil {
		return err
	}
	c.issuer = issuer
	return nil
}

func (c *Container) initWorkers() error {
	manager, err := ProvideWorkers(&WorkerDeps{
		Storage:   c.fileStorage,
		History:   c.repositories.History,
		WorkerCfg: &c.config.Worker,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = manager
	return c.workers.StartAll(c.ctx)
}

func (c *Container) initHTTPServer() error {
	c.httpServer = ProvideHTTPServer(&c.config.Server, c.config.Storage.MaxUploadSize,
		c.services, c.issuer, c.HealthCheck, c.logger)
	return nil
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Lock returns the action lock.
func (c *Container) Lock() port.ActionLock {
	return c.lock
}

// FileStorage returns the file storage.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns the service bundle.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Issuer returns the access token issuer.
func (c *Container) Issuer() *auth.Issuer {
	return c.issuer
}

// HTTPServer returns the HTTP server.
func (c *Container) HTTPServer() *httpapi.Server {
	return c.httpServer
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the keysAndValues Logger interfaces
// used by services, the dispatcher and the HTTP layer.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
