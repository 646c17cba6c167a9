package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/chopchop/backend/internal/database"
	"github.com/pageza/chopchop/backend/internal/middleware"
	"github.com/pageza/chopchop/backend/internal/service"
)

// Dependencies are the services behind the HTTP API. DB and Limiter are
// optional.
type Dependencies struct {
	Auth       service.IAuthService
	Workspaces *service.WorkspaceRegistry
	Email      service.IEmailService
	Backend    service.Forwarder
	Limiter    *middleware.RateLimiter
	DB         *gorm.DB
	MaxUpload  int64
	Logger     *zap.Logger
}

// proxyBodyLimit leaves room for the base64 expansion of an image
func proxyBodyLimit(maxUpload int64) int64 {
	return maxUpload*4/3 + 64*1024
}

// HealthCheck returns the health status of the API
func HealthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{
			"status":  "healthy",
			"message": "ChopChop API is running",
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := database.HealthCheck(ctx, db); err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, status)
				return
			}
			status["database"] = "ok"
		}
		c.JSON(http.StatusOK, status)
	}
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	router.GET("/health", HealthCheck(deps.DB))
	router.GET("/api/health", HealthCheck(deps.DB))

	var limit []gin.HandlerFunc
	if deps.Limiter != nil {
		limit = append(limit, deps.Limiter.Middleware())
	} else {
		deps.Logger.Info("rate limiting disabled, no Redis configured")
	}

	proxy := NewProxyHandler(deps.Backend, proxyBodyLimit(deps.MaxUpload), deps.Logger.With(zap.String("component", "proxy")))
	proxy.RegisterRoutes(router.Group("/api"), limit...)

	v1 := router.Group("/api/v1")
	NewSessionHandler(deps.Auth, deps.Workspaces, deps.Logger.With(zap.String("component", "session"))).
		RegisterRoutes(v1)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(deps.Auth))
	NewKitchenHandler(deps.Workspaces, deps.Email, deps.MaxUpload, deps.Logger.With(zap.String("component", "kitchen"))).
		RegisterRoutes(protected, limit...)
}
