package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/helloviza/approvals/internal/config"
	"github.com/helloviza/approvals/internal/container"
	httpapi "github.com/helloviza/approvals/internal/interfaces/http"
	"github.com/helloviza/approvals/internal/metrics"
	"github.com/helloviza/approvals/pkg/utils"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file (empty for env only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	startedAt := time.Now()
	httpapi.Version = version
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	}
	metrics.Register()

	logger.Info("Starting travel approvals service",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("redis_lock", cfg.Redis.Addr != ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container close failed", zap.Error(err))
		}
	}()

	// Start blocks until ctx is cancelled by a signal, then shuts down
	if err := c.HTTPServer().Start(ctx); err != nil {
		return err
	}

	logger.Info("Server exited successfully", zap.Duration("uptime", time.Since(startedAt)))
	return nil
}
