package container

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/helloviza/approvals/internal/application/dispatcher"
	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/application/service"
	"github.com/helloviza/approvals/internal/auth"
	"github.com/helloviza/approvals/internal/domain/derive"
	"github.com/helloviza/approvals/internal/domain/event"
	"github.com/helloviza/approvals/internal/infrastructure/lock"
	"github.com/helloviza/approvals/internal/infrastructure/persistence/repository"
	"github.com/helloviza/approvals/internal/infrastructure/persistence/sqlite"
	"github.com/helloviza/approvals/internal/infrastructure/storage"
	"github.com/helloviza/approvals/internal/infrastructure/worker"
	httpapi "github.com/helloviza/approvals/internal/interfaces/http"
	"github.com/helloviza/approvals/internal/metrics"
	"github.com/helloviza/approvals/migrations"
	"github.com/helloviza/approvals/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// LockBundle holds the action lock and, when Redis backs it, the client.
type LockBundle struct {
	Lock   port.ActionLock
	Client *redis.Client
}

// ProvideDatabase opens the database and applies pending migrations, from
// MigrationsDir when set and from the embedded set otherwise.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !strings.HasPrefix(cfg.Path, "file:") {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(ctx, cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrationsFS(ctx, migrations.FS)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repository instances.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Request: repository.NewRequestRepository(sqlDB, logger),
		History: repository.NewHistoryRepository(sqlDB, logger),
	}, nil
}

// ProvideLock returns a Redis lock when an address is configured and the
// in-process lock otherwise. An unreachable Redis fails startup.
func ProvideLock(ctx context.Context, cfg *RedisConfig, logger *zap.Logger) (*LockBundle, error) {
	if cfg == nil || cfg.Addr == "" {
		logger.Info("Redis not configured, using in-process action lock")
		return &LockBundle{Lock: lock.NewMemoryLock()}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	redisLock := lock.NewRedisLock(client, cfg.KeyPrefix, logger)
	if err := redisLock.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Using Redis action lock", zap.String("addr", cfg.Addr))
	return &LockBundle{Lock: redisLock, Client: client}, nil
}

// ProvideStorage creates the local file storage rooted at cfg.BaseDir.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil || cfg.BaseDir == "" {
		return nil, fmt.Errorf("storage base directory is required")
	}
	base, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	return storage.NewLocalFileStorage(base, logger), nil
}

// ProvideDispatcher creates the event dispatcher with the log and metrics
// handlers subscribed to every event.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d := dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}))

	d.SubscribeAll("event-log", func(ctx context.Context, evt *event.Event) error {
		logger.Info("Domain event",
			zap.String("event_type", string(evt.Type)),
			zap.String("request_id", evt.RequestID),
			zap.String("actor", evt.Actor),
			zap.Any("payload", evt.Payload),
		)
		return nil
	})
	d.SubscribeAll("event-metrics", func(ctx context.Context, evt *event.Event) error {
		metrics.IncEvent(string(evt.Type))
		return nil
	})

	return d, nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos         *RepositoryBundle
	TxManager     port.TransactionManager
	Lock          port.ActionLock
	Storage       port.FileStorage
	Dispatcher    dispatcher.Dispatcher
	MaxUploadSize int
	Signal        *SignalConfig
	Logger        *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps, lockCfg *RedisConfig) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	core := service.Dependencies{
		Requests: deps.Repos.Request,
		History:  deps.Repos.History,
		Tx:       deps.TxManager,
		Lock:     deps.Lock,
		Events:   deps.Dispatcher,
		Logger:   serviceLogger,
	}
	if lockCfg != nil {
		core.LockTTL = lockCfg.LockTTL
	}

	requests := service.NewRequestService(core)
	approver := service.NewApproverService(core)
	admin := service.NewAdminService(core)

	signaler := derive.NewSignaler(derive.DefaultHighValue)
	if deps.Signal != nil {
		signaler = derive.NewSignaler(deps.Signal.HighValue)
	}

	return &ServiceBundle{
		Requests:    requests,
		Approver:    approver,
		Admin:       admin,
		Attachments: service.NewAttachmentService(core, deps.Storage, deps.MaxUploadSize),
		Export:      service.NewExportService(requests, approver, admin, serviceLogger),
		Views:       service.NewViewBuilder(signaler),
	}, nil
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Storage   port.FileStorage
	History   port.HistoryRepository
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates the worker manager with all workers registered.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Storage == nil || deps.History == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}

	manager := worker.NewWorkerManager(deps.Logger)

	sweepCfg := worker.DefaultAttachmentSweeperConfig()
	sweepCfg.Dir = service.UploadDir
	if deps.WorkerCfg != nil {
		if deps.WorkerCfg.SweepInterval > 0 {
			sweepCfg.Interval = deps.WorkerCfg.SweepInterval
		}
		if deps.WorkerCfg.SweepRetention > 0 {
			sweepCfg.Retention = deps.WorkerCfg.SweepRetention
		}
	}
	manager.Register(worker.NewAttachmentSweeper(sweepCfg, deps.Storage, deps.History, deps.Logger))

	return manager, nil
}

// ProvideIssuer creates the access token issuer.
func ProvideIssuer(cfg *AuthConfig) (*auth.Issuer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth config is required")
	}
	return auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
}

// ProvideHTTPServer creates the HTTP server over the services.
func ProvideHTTPServer(cfg *ServerConfig, maxUpload int, services *ServiceBundle, issuer *auth.Issuer, health func(ctx context.Context) error, logger *zap.Logger) *httpapi.Server {
	serverCfg := httpapi.DefaultServerConfig()
	serverCfg.Host = cfg.Host
	serverCfg.Port = cfg.Port
	if cfg.ReadTimeout > 0 {
		serverCfg.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		serverCfg.WriteTimeout = cfg.WriteTimeout
	}
	serverCfg.AllowedOrigins = cfg.AllowedOrigins
	serverCfg.RateLimit = httpapi.RateLimitConfig{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst}
	if maxUpload > 0 {
		serverCfg.MaxUploadSize = int64(maxUpload)
	}

	return httpapi.NewServer(serverCfg, httpapi.Services{
		Requests:    services.Requests,
		Approver:    services.Approver,
		Admin:       services.Admin,
		Attachments: services.Attachments,
		Export:      services.Export,
		Views:       services.Views,
	}, issuer, health, &zapLoggerAdapter{logger: logger})
}
