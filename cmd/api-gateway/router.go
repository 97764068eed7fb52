package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-scheduler/api/swagger"
	"github.com/noah-isme/course-scheduler/internal/handler"
	"github.com/noah-isme/course-scheduler/internal/middleware"
	"github.com/noah-isme/course-scheduler/pkg/config"
	"github.com/noah-isme/course-scheduler/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-scheduler/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-scheduler/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, app *application, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metrics))

	metricsHandler := handler.NewMetricsHandler(app.metrics, app.db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	scheduleHandler := handler.NewScheduleHandler(app.schedules)
	auditHandler := handler.NewAuditHandler(app.audit, nil)
	if app.worker != nil {
		auditHandler = handler.NewAuditHandler(app.audit, app.worker)
	}

	api := r.Group(cfg.APIPrefix)
	schedules := api.Group("/schedules")
	{
		schedules.GET("", scheduleHandler.List)
		schedules.POST("", scheduleHandler.Create)
		schedules.POST("/check", scheduleHandler.Check)
		schedules.GET("/audit", auditHandler.Run)
		schedules.POST("/audit", auditHandler.Enqueue)
		schedules.GET("/audit/export", auditHandler.Export)
		schedules.GET("/audit/jobs/:id", auditHandler.Job)
		schedules.GET("/:id", scheduleHandler.Get)
		schedules.PUT("/:id", scheduleHandler.Update)
		schedules.DELETE("/:id", scheduleHandler.Delete)
	}
	return r
}
