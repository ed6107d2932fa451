// Package http is the gin adapter in front of the approval services.
// Handlers only translate HTTP into service calls and errors back into statuses.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helloviza/approvals/internal/application/service"
	"github.com/helloviza/approvals/internal/auth"
	"github.com/helloviza/approvals/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RateLimitConfig bounds requests per client IP. RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	RateLimit      RateLimitConfig
	// MaxUploadSize caps multipart bodies on the attachment route
	MaxUploadSize int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "0.0.0.0",
		Port:          8080,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		RateLimit:     RateLimitConfig{RPS: 20, Burst: 40},
		MaxUploadSize: service.DefaultMaxUploadSize,
	}
}

// Services groups the application services the handlers call
type Services struct {
	Requests    service.RequestService
	Approver    service.ApproverService
	Admin       service.AdminService
	Attachments service.AttachmentService
	Export      service.ExportService
	Views       *service.ViewBuilder
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	issuer     *auth.Issuer
	health     func(ctx context.Context) error
	logger     Logger
}

// NewServer creates a new HTTP server. health may be nil.
func NewServer(config ServerConfig, services Services, issuer *auth.Issuer, health func(ctx context.Context) error, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		issuer:   issuer,
		health:   health,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	if len(s.config.AllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = s.config.AllowedOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"}
		corsConfig.ExposeHeaders = []string{"Content-Disposition"}
		s.router.Use(cors.New(corsConfig))
	}

	if s.config.RateLimit.RPS > 0 {
		s.router.Use(newRateLimiter(s.config.RateLimit).middleware())
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.health, s.config.MaxUploadSize, s.logger)

	s.router.GET("/health", h.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	anyRole := s.authenticate()
	requester := s.authenticate(entity.RoleRequester)
	approver := s.authenticate(entity.RoleApprover)
	admin := s.authenticate(entity.RoleAdmin)

	api := s.router.Group("/approvals")
	{
		api.POST("", requester, h.Submit)
		api.GET("/mine", requester, h.ListMine)
		api.PUT("/:id", requester, h.EditOrRevoke)
		api.PATCH("/:id", requester, h.EditOrRevoke)

		api.GET("/inbox", approver, h.Inbox)
		api.PUT("/:id/:action", approver, h.ApproverAction)

		api.GET("/admin/approved", admin, h.AdminQueue)
		api.PUT("/admin/:id/:action", admin, h.AdminAction)

		api.POST("/attachments", anyRole, h.UploadAttachment)
		api.GET("/attachments/:file/download", anyRole, h.DownloadAttachment)

		api.GET("/export.csv", anyRole, h.Export(service.FormatCSV))
		api.GET("/export.xlsx", anyRole, h.Export(service.FormatXLSX))

		api.GET("/:id", anyRole, h.GetRequest)
	}
}

// Start starts the HTTP server and blocks until ctx is done or serving fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}
	s.httpServer = nil

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
