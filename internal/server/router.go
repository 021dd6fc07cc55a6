// Package server wires the HTTP API: router, middleware chain, and the
// server lifecycle around them.
package server

import (
	"github.com/gin-gonic/gin"

	"scriptor/internal/auth"
	"scriptor/internal/core/database"
	"scriptor/internal/core/model"
	"scriptor/internal/server/handlers"
	"scriptor/internal/server/middleware"
	"scriptor/pkg/logger"
)

// RouterConfig holds router dependencies. The server binds one database
// for its whole lifetime; requests never choose their own.
type RouterConfig struct {
	Manager  *database.Manager
	Resolver model.Resolver
	Database string

	Logger      *logger.Logger
	TokenAuth   middleware.TokenValidator
	AuthService *auth.Service
}

// NewRouter creates and configures the gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Order matters: recovery outermost, then tracing so every log line
	// has IDs, then the error renderer.
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Manager, cfg.Database)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()

	v1 := router.Group("/api/v1")
	{
		// Login needs a handle to read users, but no token yet.
		authGroup := v1.Group("/auth")
		authGroup.Use(middleware.Environment(cfg.Manager, cfg.Resolver, cfg.Database))
		handlers.NewAuthHandler(base, cfg.AuthService).RegisterRoutes(authGroup)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.TokenAuth, cfg.Database))
		protected.Use(middleware.Environment(cfg.Manager, cfg.Resolver, cfg.Database))
		handlers.NewObjectsHandler(base).RegisterRoutes(protected)
	}

	return router
}
