package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/face-attendance-api/internal/repository"
	"github.com/noah-isme/face-attendance-api/internal/service"
	"github.com/noah-isme/face-attendance-api/pkg/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached rosters and class rollups",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush [class-id]",
	Short: "Drop cached rosters and rollups, for one class or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheFlush,
}

func init() {
	cacheCmd.AddCommand(cacheFlushCmd)
}

func runCacheFlush(cmd *cobra.Command, args []string) error {
	cfg, logr, err := bootstrap()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	ctx := cmd.Context()
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	repo := repository.NewCacheRepository(client, cacheKeyPrefix, logr)
	defer repo.Close() //nolint:errcheck

	if len(args) == 1 {
		classID := args[0]
		// Bumping the generation retires the entries without racing in-flight readers.
		svc := service.NewCacheService(repo, nil, 0, logr, true)
		svc.Invalidate(ctx, service.RosterCacheKey(classID), service.StatsCacheKey(classID))
		logr.Info("class cache invalidated", zap.String("class_id", classID))
		return nil
	}

	for _, pattern := range []string{"roster:*", "stats:*"} {
		if err := repo.DeleteByPattern(ctx, pattern); err != nil {
			return err
		}
	}
	logr.Info("cache flushed")
	return nil
}
