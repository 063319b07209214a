package handlers

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/worklance/backend/internal/http/dto"
	"github.com/worklance/backend/internal/ledger"
	"github.com/worklance/backend/internal/middleware"
	"github.com/worklance/backend/internal/models"
	"github.com/worklance/backend/internal/repositories"
)

// AdminHandler exposes the platform authority operations. The authority key
// is optional; without it these endpoints return 503.
type AdminHandler struct {
	jobRepo   *repositories.JobRepo
	auditRepo *repositories.AuditRepo
	chain     *ledger.Client
	authority ledger.Authorizer
	log       *zap.Logger
}

func NewAdminHandler(jobRepo *repositories.JobRepo, auditRepo *repositories.AuditRepo, chain *ledger.Client, authority ledger.Authorizer, log *zap.Logger) *AdminHandler {
	return &AdminHandler{jobRepo: jobRepo, auditRepo: auditRepo, chain: chain, authority: authority, log: log}
}

func (h *AdminHandler) payerFor(c *fiber.Ctx, jobIDStr string) (solana.PublicKey, string, error) {
	id, err := uuid.Parse(jobIDStr)
	if err != nil {
		return solana.PublicKey{}, "", models.ErrInvalidInput
	}
	job, err := h.jobRepo.GetByID(c.Context(), id)
	if err != nil {
		return solana.PublicKey{}, "", models.ErrEscrowNotFound
	}
	if job.PayerWallet == nil {
		return solana.PublicKey{}, "", models.ErrInvalidInput
	}
	payer, err := solana.PublicKeyFromBase58(*job.PayerWallet)
	if err != nil {
		return solana.PublicKey{}, "", models.ErrInvalidInput
	}
	return payer, job.BlockchainJobID, nil
}

func (h *AdminHandler) Withdraw(c *fiber.Ctx) error {
	if h.authority == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "platform authority is not configured"})
	}

	var req dto.PlatformWithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	payer, blockchainJobID, err := h.payerFor(c, req.JobID)
	if err != nil {
		return c.Status(statusFromErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	sig, err := h.chain.PlatformWithdraw(c.Context(), h.authority, payer, blockchainJobID, req.Lamports)
	if err != nil {
		return c.Status(statusFromErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	h.log.Info("platform withdraw",
		zap.String("job_id", req.JobID),
		zap.Uint64("lamports", req.Lamports),
		zap.String("signature", sig.String()),
	)
	actorID := middleware.GetUserID(c)
	_ = h.auditRepo.Log(c.Context(), models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "admin",
		Action:      "platform_withdraw",
		EntityType:  "job",
		Meta:        map[string]any{"job_id": req.JobID, "lamports": req.Lamports, "signature": sig.String()},
	})
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PlatformWithdrawResponse{Signature: sig.String()}})
}

func (h *AdminHandler) EmergencyClose(c *fiber.Ctx) error {
	if h.authority == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "platform authority is not configured"})
	}

	payer, blockchainJobID, err := h.payerFor(c, c.Params("id"))
	if err != nil {
		return c.Status(statusFromErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	sig, err := h.chain.PlatformEmergencyClose(c.Context(), h.authority, payer, blockchainJobID)
	if err != nil {
		return c.Status(statusFromErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	h.log.Warn("platform emergency close",
		zap.String("job_id", c.Params("id")),
		zap.String("signature", sig.String()),
	)
	actorID := middleware.GetUserID(c)
	_ = h.auditRepo.Log(c.Context(), models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "admin",
		Action:      "platform_emergency_close",
		EntityType:  "job",
		Meta:        map[string]any{"job_id": c.Params("id"), "signature": sig.String()},
	})
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PlatformWithdrawResponse{Signature: sig.String()}})
}
