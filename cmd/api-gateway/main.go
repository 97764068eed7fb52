package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/course-scheduler/internal/repository"
	"github.com/noah-isme/course-scheduler/internal/service"
	"github.com/noah-isme/course-scheduler/pkg/cache"
	"github.com/noah-isme/course-scheduler/pkg/config"
	"github.com/noah-isme/course-scheduler/pkg/database"
	"github.com/noah-isme/course-scheduler/pkg/logger"
)

// @title Course Scheduler API
// @version 1.0.0
// @description Schedule conflict detection for room, block-section and duplicate offering rules
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, year level cache disabled", zap.Error(err))
		}
	}

	app := buildApp(cfg, db, redisClient, logr)
	if app.worker != nil {
		app.worker.Start(ctx)
		defer app.worker.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, app, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logr.Info("server stopped")
}

type application struct {
	db        *sqlx.DB
	metrics   *service.MetricsService
	schedules *service.ScheduleService
	audit     *service.AuditService
	worker    *service.AuditWorker
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *application {
	metrics := service.NewMetricsService()

	scheduleRepo := repository.NewScheduleRepository(db)
	roomRepo := repository.NewRoomRepository(db)

	var (
		yearLevels  service.YearLevelResolver = repository.NewCurriculumRepository(db)
		invalidator service.CacheInvalidator
	)
	if redisClient != nil {
		cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
		cached := service.NewCachedYearLevelResolver(yearLevels, cacheSvc)
		yearLevels, invalidator = cached, cached
	}

	window := service.DayWindow{Start: cfg.Schedule.DayStart, End: cfg.Schedule.DayEnd}
	detector := service.NewConflictDetector(scheduleRepo, yearLevels, roomRepo, window)

	app := &application{
		db:        db,
		metrics:   metrics,
		schedules: service.NewScheduleService(scheduleRepo, detector, validator.New(), metrics, logr),
		audit:     service.NewAuditService(scheduleRepo, yearLevels, window, metrics, logr),
	}
	if cfg.Audit.WorkerEnabled {
		app.worker = service.NewAuditWorker(app.audit, service.AuditWorkerConfig{
			Interval:    cfg.Audit.Interval,
			MaxRetries:  cfg.Audit.WorkerRetries,
			RetryDelay:  30 * time.Second,
			Invalidator: invalidator,
		}, logr.Named("audit-worker"))
	}
	return app
}
