package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/worklance/backend/internal/config"
	"github.com/worklance/backend/internal/db"
	"github.com/worklance/backend/internal/events"
	"github.com/worklance/backend/internal/ledger"
	"github.com/worklance/backend/internal/repositories"
	"github.com/worklance/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	jobRepo := repositories.NewJobRepo(pool)
	projectRepo := repositories.NewProjectRepo(pool)
	milestoneRepo := repositories.NewMilestoneRepo(pool)
	stakingRepo := repositories.NewStakingRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	chain := ledger.NewClient(cfg.SolanaRPCURL, log)
	locker := services.NewProjectLocker()
	reconcileService := services.NewReconcileService(pool, jobRepo, projectRepo, milestoneRepo, stakingRepo, auditRepo, chain, publisher, locker, cfg, log)

	log.Info("reconciler started",
		zap.Duration("interval", cfg.ReconcileInterval),
		zap.Int("parallelism", cfg.ReconcileParallelism),
	)

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Converge once at startup: crash recovery must not wait a full interval.
	reconcileService.SyncAll(ctx, cfg.ReconcileParallelism)

	for {
		select {
		case <-ticker.C:
			reconcileService.SyncAll(ctx, cfg.ReconcileParallelism)
		case <-sigCh:
			log.Info("shutting down reconciler")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
