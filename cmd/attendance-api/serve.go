package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/face-attendance-api/internal/handler"
	"github.com/noah-isme/face-attendance-api/internal/repository"
	"github.com/noah-isme/face-attendance-api/internal/server"
	"github.com/noah-isme/face-attendance-api/internal/service"
	"github.com/noah-isme/face-attendance-api/pkg/cache"
	"github.com/noah-isme/face-attendance-api/pkg/config"
	"github.com/noah-isme/face-attendance-api/pkg/database"
	"github.com/noah-isme/face-attendance-api/pkg/jobs"
)

const cacheKeyPrefix = "face-attendance"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().Bool("migrate", false, "Apply pending migrations before serving (overrides DB_AUTO_MIGRATE)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logr, err := bootstrap()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Port = port
	}
	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		cfg.Database.AutoMigrate = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db, logr)
		if err != nil {
			return err
		}
		logr.Info("migrations applied", zap.Strings("applied", applied))
	}

	redisClient := connectRedis(ctx, cfg, logr)
	cacheRepo := repository.NewCacheRepository(redisClient, cacheKeyPrefix, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.RosterTTL, logr, redisClient != nil)

	classRepo := repository.NewClassRepository(db)
	profileRepo := repository.NewFaceProfileRepository(db)
	sessionRepo := repository.NewAttendanceSessionRepository(db)
	recordRepo := repository.NewAttendanceRecordRepository(db)

	validate := validator.New()
	rosterSvc := service.NewRosterService(profileRepo, classRepo, cacheSvc, cfg.Cache.RosterTTL, validate, logr)
	statsSvc := service.NewStatsService(classRepo, sessionRepo, profileRepo, cacheSvc, cfg.Cache.StatsTTL, metricsSvc, logr)
	scheduleSvc := service.NewScheduleGeneratorService(classRepo, statsSvc, validate, logr)
	sessionSvc := service.NewAttendanceSessionService(sessionRepo, recordRepo, classRepo, rosterSvc, statsSvc, metricsSvc, validate, logr)

	if cfg.StatsWorker.Enabled && cacheSvc.Enabled() {
		queue := jobs.NewQueue("class-stats", statsSvc.HandleRefresh, jobs.QueueConfig{
			Workers:    cfg.StatsWorker.Concurrency,
			MaxRetries: cfg.StatsWorker.Retries,
			RetryDelay: cfg.StatsWorker.RetryDelay,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		statsSvc.UseQueue(queue)
	}

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(cacheRepo.Ping)
	}

	router := server.NewRouter(cfg, logr, metricsSvc, server.Handlers{
		Class:   handler.NewClassHandler(scheduleSvc, rosterSvc, statsSvc),
		Session: handler.NewSessionHandler(sessionSvc),
		Metrics: handler.NewMetricsHandler(metricsSvc, checks),
	})

	return server.Run(ctx, cfg.Port, router, logr)
}

// connectRedis returns nil when caching is disabled or Redis is unreachable; the service
// then reads through to Postgres.
func connectRedis(ctx context.Context, cfg *config.Config, logr *zap.Logger) *redis.Client {
	if !cfg.Cache.Enabled {
		return nil
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		return nil
	}
	return client
}
