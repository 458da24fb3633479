package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/auth"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/cache"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/database"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/logging"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/session"
)

// cleanupInterval is how often idle sessions are reaped
const cleanupInterval = 5 * time.Minute

// Server wires the HTTP surface, the WebSocket transport and the
// per-session workers together
type Server struct {
	cfg    Config
	router *gin.Engine

	db       database.Store
	cache    cache.Cache
	auth     *auth.Auth
	sessions *session.Store

	hub        *Hub
	registry   *Registry
	supervisor *Supervisor
	upgrader   websocket.Upgrader

	httpServer *http.Server
	stop       chan struct{}
}

// New assembles a server over the durable store and cache
func New(cfg Config, db database.Store, c cache.Cache) *Server {
	cfg = cfg.withDefaults()

	sessions := session.NewStore(db, c, session.StoreConfig{})
	hub := NewHub()
	registry := NewRegistry(cfg)
	authSvc := auth.New(auth.Config{JWTSecret: cfg.JWTSecret})

	sup := NewSupervisor(cfg, sessions, hub, c, authSvc)
	sup.SetRegistry(registry)
	registry.SetQualitySink(sup.PostQuality)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		cfg:        cfg,
		router:     router,
		db:         db,
		cache:      c,
		auth:       authSvc,
		sessions:   sessions,
		hub:        hub,
		registry:   registry,
		supervisor: sup,
		upgrader:   newUpgrader(cfg.AllowedOrigins),
		stop:       make(chan struct{}),
	}

	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware())
	router.Use(RecoveryMiddleware())
	router.Use(ErrorHandler())
	router.Use(s.corsMiddleware())

	s.setupRoutes()
	return s
}

// corsMiddleware applies the configured origin allowlist
func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowed := s.cfg.AllowedOrigins
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(allowed, origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Platform-Secret, X-Requested-With")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func (s *Server) setupRoutes() {
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/sessions", s.handleListSessions)
		api.GET("/sessions/code/:code", s.handleGetSession)
		api.GET("/sessions/rejoin-token/:token", s.handleRejoinLookup)
	}

	internal := s.router.Group("/api/internal", s.requirePlatformSecret)
	{
		internal.POST("/sessions", s.handleCreateSession)
		internal.POST("/sessions/:code/archive", s.handleArchiveSession)
	}
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until the context is cancelled, then drains
func (s *Server) Run(ctx context.Context) error {
	s.registry.Run()
	go s.supervisor.RunCleanup(cleanupInterval, s.stop)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening", map[string]interface{}{
			"addr": s.cfg.Addr,
		})
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting work, drains the workers and flushes the
// remaining checkpoints
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("server shutting down", nil)
	close(s.stop)

	var httpErr error
	if s.httpServer != nil {
		httpErr = s.httpServer.Shutdown(ctx)
	}

	s.registry.Close()
	s.supervisor.Shutdown()
	s.sessions.Close()
	return httpErr
}
