// Package server exposes a read-only diagnostics HTTP surface over a
// running System: health, registry snapshots, and Prometheus metrics.
// The runtime's real API is in-process embedding; nothing here mutates
// the System.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/InferOS/runtime/internal/infrastructure/config"
	"github.com/GriffinCanCode/InferOS/runtime/internal/infrastructure/logging"
	"github.com/GriffinCanCode/InferOS/runtime/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/InferOS/runtime/internal/runtime"
)

// Server wraps the diagnostics HTTP server.
type Server struct {
	router  *gin.Engine
	system  *runtime.System
	logger  *logging.Logger
	metrics *monitoring.Metrics
	cfg     *config.Config
}

// New creates a diagnostics server over sys.
func New(cfg *config.Config, sys *runtime.System, logger *logging.Logger, metrics *monitoring.Metrics) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	if cfg.RateLimit.Enabled {
		router.Use(rateLimit(RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	s := &Server{
		router:  router,
		system:  sys,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
	}

	router.GET("/health", s.health)
	router.GET("/system/stats", s.stats)
	router.GET("/system/devices", s.devices)
	router.GET("/system/nodes", s.nodes)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	s.logger.Info("starting diagnostics server", zap.String("addr", s.cfg.Diag.Addr))
	return s.router.Run(s.cfg.Diag.Addr)
}

func (s *Server) health(c *gin.Context) {
	stats := s.system.Stats()
	status := "ok"
	code := http.StatusOK
	if stats.Shutdown {
		status = "shutdown"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":      status,
		"system":      stats.ID,
		"initialized": stats.Initialized,
	})
}

func (s *Server) stats(c *gin.Context) {
	if s.metrics != nil {
		s.metrics.UpdateUptime()
	}
	c.JSON(http.StatusOK, s.system.Stats())
}

func (s *Server) devices(c *gin.Context) {
	devices := s.system.Devices()
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name())
	}
	c.JSON(http.StatusOK, gin.H{"devices": names})
}

func (s *Server) nodes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nodes": s.system.Nodes()})
}
