package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	academicservice "github.com/aylahq/ayla-backend/internal/academic/service"
	"github.com/aylahq/ayla-backend/internal/auth/middleware"
	"github.com/aylahq/ayla-backend/internal/conf"
	"github.com/aylahq/ayla-backend/internal/data"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	shadowservice "github.com/aylahq/ayla-backend/internal/shadow/service"
	workspaceservice "github.com/aylahq/ayla-backend/internal/workspace/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services groups the HTTP-facing services mounted on the server
type Services struct {
	Files      *shadowservice.FileService
	Jobs       *shadowservice.JobService
	Workspaces *workspaceservice.WorkspaceService
	Academic   *academicservice.AcademicService
}

// HTTPServer wraps the gin engine and its lifecycle
type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

// New builds the router: public health endpoints, the authenticated API
// under /api/v1, and the service-key-guarded internal job endpoints.
func New(cfg *conf.Config, d *data.Data, svcs *Services, log *logger.Logger) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(log))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.DB.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := d.Redis.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	api.Use(middleware.OwnerAuth(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, log))
	{
		svcs.Files.RegisterRoutes(api)
		svcs.Workspaces.RegisterRoutes(api)
		svcs.Academic.RegisterRoutes(api)
	}

	internal := engine.Group("/internal")
	internal.Use(middleware.ServiceKeyAuth(cfg.Auth.ServiceKey, log))
	{
		svcs.Jobs.RegisterRoutes(internal)
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Start blocks serving until Shutdown or a listener error
func (s *HTTPServer) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.server.Shutdown(ctx)
}
