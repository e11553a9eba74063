package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/config"
	"example.com/verdad/services/notifier/internal/api/handlers"
	"example.com/verdad/services/notifier/internal/api/middleware"
)

// Handlers groups the route handlers the server mounts
type Handlers struct {
	Webhook  *handlers.WebhookHandler
	Auth     *handlers.AuthHandler
	Users    *handlers.UsersHandler
	Metrics  *handlers.MetricsHandler
	Identity middleware.TokenVerifier
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, h Handlers) *Server {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	// The webhook endpoint authenticates via signature, not bearer token
	router.POST("/webhooks/liveblocks", h.Webhook.HandleWebhook)

	authed := router.Group("/", middleware.RequireIdentity(h.Identity))
	authed.POST("/liveblocks-auth", h.Auth.HandleAuth)
	authed.POST("/users-by-emails", h.Users.GetUsersByEmails)
	authed.GET("/search-users", h.Users.SearchUsers)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", h.Metrics.GetMetrics)

	return &Server{
		config: cfg,
		router: router,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress,
			Handler:      router,
			ReadTimeout:  cfg.ServerTimeout,
			WriteTimeout: cfg.ServerTimeout,
		},
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
