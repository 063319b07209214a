package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/worklance/backend/internal/auth"
	"github.com/worklance/backend/internal/config"
	"github.com/worklance/backend/internal/db"
	"github.com/worklance/backend/internal/events"
	apphttp "github.com/worklance/backend/internal/http"
	"github.com/worklance/backend/internal/http/handlers"
	"github.com/worklance/backend/internal/ledger"
	"github.com/worklance/backend/internal/repositories"
	"github.com/worklance/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	jobRepo := repositories.NewJobRepo(pool)
	projectRepo := repositories.NewProjectRepo(pool)
	milestoneRepo := repositories.NewMilestoneRepo(pool)
	stakingRepo := repositories.NewStakingRepo(pool)
	txRepo := repositories.NewTransactionRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Ledger
	chain := ledger.NewClient(cfg.SolanaRPCURL, log)
	var authority ledger.Authorizer
	if cfg.PlatformWalletSecret != "" {
		authority, err = ledger.WalletAuthorizerFromBase58(cfg.PlatformWalletSecret)
		if err != nil {
			log.Fatal("invalid platform wallet secret", zap.Error(err))
		}
	}

	// Services
	locker := services.NewProjectLocker()
	reconcileService := services.NewReconcileService(pool, jobRepo, projectRepo, milestoneRepo, stakingRepo, auditRepo, chain, publisher, locker, cfg, log)
	milestoneService := services.NewMilestoneService(pool, jobRepo, projectRepo, milestoneRepo, stakingRepo, txRepo, publisher, locker, cfg, log)
	escrowService := services.NewEscrowService(pool, jobRepo, projectRepo, milestoneRepo, stakingRepo, txRepo, chain, publisher, log)

	// Handlers
	nonces := auth.NewNonceStore(rdb)
	authHandler := handlers.NewAuthHandler(userRepo, nonces, cfg, log)
	jobHandler := handlers.NewJobHandler(jobRepo, txRepo, reconcileService, milestoneService, log)
	escrowHandler := handlers.NewEscrowHandler(escrowService, log)
	milestoneHandler := handlers.NewMilestoneHandler(milestoneService, log)
	adminHandler := handlers.NewAdminHandler(jobRepo, auditRepo, chain, authority, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, jobHandler, escrowHandler, milestoneHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
