package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/face-attendance-api/api/swagger"
	"github.com/noah-isme/face-attendance-api/internal/handler"
	internalmiddleware "github.com/noah-isme/face-attendance-api/internal/middleware"
	"github.com/noah-isme/face-attendance-api/internal/service"
	"github.com/noah-isme/face-attendance-api/pkg/config"
	"github.com/noah-isme/face-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/face-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/face-attendance-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Class   *handler.ClassHandler
	Session *handler.SessionHandler
	Metrics *handler.MetricsHandler
}

// NewRouter builds the gin engine with the ambient middleware chain and every route.
func NewRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	classes := api.Group("/classes")
	classes.POST("", h.Class.Create)
	classes.GET("/:id", h.Class.Get)
	classes.POST("/:id/schedule/regenerate", h.Class.RegenerateSchedule)
	classes.PUT("/:id/students/:studentId/profile", h.Class.UpsertProfile)
	classes.GET("/:id/students", h.Class.Roster)
	classes.GET("/:id/stats", h.Class.Stats)
	classes.POST("/:id/sessions", h.Session.Open)
	classes.GET("/:id/sessions", h.Session.ListByClass)

	sessions := api.Group("/sessions")
	sessions.GET("/:id", h.Session.Get)
	sessions.PUT("/:id/records", h.Session.RecordPresence)
	sessions.GET("/:id/records", h.Session.Records)
	sessions.POST("/:id/complete", h.Session.Complete)

	return r
}
