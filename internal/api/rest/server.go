package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/api/websocket"
	"github.com/KevinKickass/OpenStudioCore/internal/config"
	"github.com/KevinKickass/OpenStudioCore/internal/interfaces"
	"github.com/KevinKickass/OpenStudioCore/internal/studio"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	router   *gin.Engine
	studio   *studio.Studio
	logger   *zap.Logger
	server   *http.Server
	wsHub    *websocket.Hub
	gatherer prometheus.Gatherer
	status   interfaces.StatusProvider
}

// NewServer wires the HTTP routes. gatherer may be nil, in which case
// /metrics is not served.
func NewServer(cfg config.ServerConfig, st *studio.Studio, wsHub *websocket.Hub, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		studio:   st,
		logger:   logger,
		wsHub:    wsHub,
		gatherer: gatherer,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetStatusProvider enables GET /api/v1/system/status.
func (s *Server) SetStatusProvider(p interfaces.StatusProvider) {
	s.status = p
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve blocks until the listener fails or Shutdown is called. A clean
// shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting REST API server", zap.String("address", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("REST server failed: %w", err)
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	s.router.GET("/health", s.healthCheck)
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== STUDIO ====================
		st := v1.Group("/studio")
		{
			st.GET("", s.getStudio)
			st.PUT("/selected-target", s.selectTarget)
			st.POST("/move-all", s.moveAll)
			st.POST("/stop-all", s.stopAll)
		}

		v1.GET("/targets", s.listTargets)
		v1.GET("/messages", s.listMessages)

		// ==================== ROBOTS ====================
		robots := v1.Group("/robots")
		{
			robots.GET("", s.listRobots)
			robots.GET("/:name", s.getRobot)
			robots.POST("/:name/move", s.moveRobot)
			robots.POST("/:name/stop", s.stopRobot)
		}

		// ==================== SYSTEM ====================
		v1.GET("/system/status", s.getSystemStatus)

		// ==================== WEBSOCKET ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
