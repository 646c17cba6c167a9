package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageza/chopchop/backend/config"
	"github.com/pageza/chopchop/backend/internal/api"
	"github.com/pageza/chopchop/backend/internal/middleware"
)

// SetupRouter configures the application routes
func SetupRouter(cfg *config.Config, deps api.Dependencies, logger *zap.Logger) *gin.Engine {
	if cfg.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger.With(zap.String("component", "http"))))
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.MaxMultipartMemory = cfg.UploadMaxBytes + 1<<20

	deps.Logger = logger
	api.RegisterRoutes(router, deps)
	return router
}
