package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/worklance/backend/internal/config"
	"github.com/worklance/backend/internal/http/handlers"
	"github.com/worklance/backend/internal/middleware"
	"github.com/worklance/backend/internal/rbac"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	jobHandler *handlers.JobHandler,
	escrowHandler *handlers.EscrowHandler,
	milestoneHandler *handlers.MilestoneHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/nonce", authHandler.Nonce)
	api.Post("/auth/wallet", authHandler.WalletAuth)

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Meta (public, no auth required)
	metaHandler := handlers.NewMetaHandler(cfg)
	api.Get("/meta/network", metaHandler.Network)
	api.Post("/escrow/derive", escrowHandler.Derive)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Jobs
	protected.Post("/jobs", middleware.RequirePermission(rbac.PermVerifyEscrow), jobHandler.Create)
	protected.Get("/jobs/:id", jobHandler.Get)
	protected.Get("/jobs/:id/transactions", jobHandler.Transactions)
	protected.Post("/jobs/:id/sync-blockchain", middleware.RequirePermission(rbac.PermSyncMirror), jobHandler.Sync)
	protected.Post("/jobs/:id/fix-milestone-payments", middleware.RequirePermission(rbac.PermSyncMirror), jobHandler.FixMilestonePayments)
	protected.Post("/jobs/:id/cancel-escrow", middleware.RequirePermission(rbac.PermCancelEscrow), jobHandler.Cancel)

	// Escrow
	protected.Post("/escrow/verify", middleware.RequirePermission(rbac.PermVerifyEscrow), escrowHandler.Verify)
	protected.Get("/escrow/status/:jobId", escrowHandler.Status)
	protected.Get("/escrow/ledger/:jobId", escrowHandler.LedgerStatus)
	protected.Get("/jobs/:id/escrow", escrowHandler.Mirror)

	// Milestones
	protected.Put("/projects/milestone/:id/submit", middleware.RequirePermission(rbac.PermSubmitMilestone), milestoneHandler.Submit)
	protected.Put("/projects/milestone/:id/review", middleware.RequirePermission(rbac.PermReviewMilestone), milestoneHandler.Review)
	protected.Put("/projects/milestone/:id/claim", middleware.RequirePermission(rbac.PermClaimMilestone), milestoneHandler.Claim)

	// Platform operations
	admin := protected.Group("/admin", middleware.AdminMiddleware())
	admin.Post("/platform-withdraw", adminHandler.Withdraw)
	admin.Post("/jobs/:id/emergency-close", adminHandler.EmergencyClose)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
