// Package rest implements the bridge's HTTP control surface: login,
// system status, pin listing, per-pin command submission and config
// reload, narrowed from the teacher's far larger device/workflow
// route set down to what spec §4.5's user frontend actually needs.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apiws "github.com/sensei-project/sensei-bridged/internal/api/websocket"
	"github.com/sensei-project/sensei-bridged/internal/auth"
	"github.com/sensei-project/sensei-bridged/internal/hardware"
	"github.com/sensei-project/sensei-bridged/internal/mapping"
	"github.com/sensei-project/sensei-bridged/internal/queue"
)

// StatusSource is the narrow view of the running system the status
// endpoint reports on; lifecycle.Manager implements it.
type StatusSource interface {
	Status() map[string]any
}

// Reloader triggers a configuration reload; lifecycle.Manager
// implements it.
type Reloader interface {
	ReloadConfig() error
}

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	log         *zap.Logger
	eventQueue  *queue.EventQueue
	processor   *mapping.Processor
	frontend    hardware.Frontend
	hub         *apiws.Hub
	credentials *auth.CredentialStore
	jwt         *auth.JWTHandler
	middleware  *auth.Middleware
	status      StatusSource
	reloader    Reloader
}

func NewServer(
	httpPort int,
	log *zap.Logger,
	eventQueue *queue.EventQueue,
	processor *mapping.Processor,
	frontend hardware.Frontend,
	hub *apiws.Hub,
	credentials *auth.CredentialStore,
	jwt *auth.JWTHandler,
	status StatusSource,
	reloader Reloader,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:      gin.New(),
		log:         log.Named("api.rest"),
		eventQueue:  eventQueue,
		processor:   processor,
		frontend:    frontend,
		hub:         hub,
		credentials: credentials,
		jwt:         jwt,
		middleware:  auth.NewMiddleware(jwt),
		status:      status,
		reloader:    reloader,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", httpPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Start() {
	s.log.Info("starting rest api server", zap.String("address", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("rest server stopped unexpectedly", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down rest api server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggerMiddleware())

	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/auth/login", s.login)
		v1.GET("/ws/live", s.wsLive)

		status := v1.Group("/status")
		status.Use(s.middleware.Authenticate(), auth.RequirePermission(auth.PermissionView))
		status.GET("", s.getStatus)

		pins := v1.Group("/pins")
		pins.Use(s.middleware.Authenticate())
		pins.GET("", auth.RequirePermission(auth.PermissionView), s.listPins)
		pins.POST("/:index/command", auth.RequirePermission(auth.PermissionOperate), s.submitPinCommand)

		cfg := v1.Group("/config")
		cfg.Use(s.middleware.Authenticate(), auth.RequirePermission(auth.PermissionAdmin))
		cfg.POST("/reload", s.reloadConfig)
	}
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().Unix()})
}
