// Package http exposes the approval workflow over JSON/HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/MiguelValor/shopify-automator/internal/application/optimizer"
	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SEOOptimizer routes generated SEO metadata by confidence
type SEOOptimizer interface {
	OptimizeSEO(ctx context.Context, req optimizer.SEORequest) (*optimizer.Outcome, error)
}

// Instrumentation is the optional metrics hook
type Instrumentation interface {
	GinMiddleware() gin.HandlerFunc
	Handler() http.Handler
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string
	// CORSOrigins lists dashboard origins; empty or "*" allows any
	CORSOrigins []string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         3003,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ServiceName:  "workflow-engine",
	}
}

// Dependencies are the application services behind the routes.
// Optimizer, Exporter and Metrics may be nil; their routes are then not mounted.
type Dependencies struct {
	Manager   service.ApprovalManager
	Optimizer SEOOptimizer
	Exporter  port.AuditExporter
	Metrics   Instrumentation
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
		logger: logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(s.recover))
	s.router.Use(corsMiddleware(s.config.CORSOrigins))
	s.router.Use(otelgin.Middleware(s.config.ServiceName))
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.GinMiddleware())
	}
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) recover(c *gin.Context, recovered interface{}) {
	s.logger.Error("Unhandled panic", "panic", fmt.Sprint(recovered), "path", c.Request.URL.Path)
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Success: false,
		Error: &ErrorBody{
			Code:    CodeInternal,
			Message: "An unexpected error occurred",
		},
	})
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps, s.config, s.logger)

	s.router.GET("/health", h.HealthCheck)
	s.router.POST("/create-approval", h.CreateApproval)

	approvals := s.router.Group("/approvals")
	{
		approvals.GET("/pending/:shopId", h.GetPendingApprovals)
		approvals.GET("/unapplied/:shopId", h.ListUnapplied)
		approvals.GET("/:id", h.GetApproval)
		approvals.POST("/:id/approve", h.ApproveItem)
		approvals.POST("/:id/reject", h.RejectItem)
		approvals.POST("/bulk-approve", h.BulkApprove)
		approvals.POST("/bulk-reject", h.BulkReject)
		approvals.POST("/expire", h.ExpireOldApprovals)
		if s.deps.Exporter != nil {
			approvals.GET("/export/:shopId", h.ExportAudit)
		}
	}

	if s.deps.Optimizer != nil {
		s.router.POST("/optimize/seo", h.OptimizeSEO)
	}
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   &ErrorBody{Code: service.CodeNotFound, Message: "route not found"},
		})
	})
}

// Start serves until ctx is canceled, then shuts down gracefully
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
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

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
