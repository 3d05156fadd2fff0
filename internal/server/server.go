package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"demo-backend/internal/common/auth"
	"demo-backend/internal/common/config"
	"demo-backend/internal/common/logger"
	"demo-backend/internal/demorequest"
)

// Server wraps the HTTP surface of the demo-provisioning API.
type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

// HealthCheck is a named dependency probe run by the health endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// New builds the router and the underlying http.Server.
func New(cfg *config.Config, service *demorequest.Service, verifier auth.Verifier, log logger.Logger, checks ...HealthCheck) *Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(log))

	engine.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		deps := gin.H{}
		for _, check := range checks {
			if err := check.Check(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				deps[check.Name] = err.Error()
			} else {
				deps[check.Name] = "ok"
			}
		}

		body := gin.H{
			"status":  "ok",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		c.JSON(status, body)
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := NewHandler(service, log)
	api := engine.Group("/api/demo", RequireAuth(verifier, log))
	api.POST("/request", handler.CreateDemoRequest)
	api.GET("/requests", handler.ListDemoRequests)
	api.GET("/requests/:id", handler.GetDemoRequest)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			Handler:      engine,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
		},
		logger: log,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"address": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
