package handlers

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/worklance/backend/internal/http/dto"
	"github.com/worklance/backend/internal/ledger"
	"github.com/worklance/backend/internal/middleware"
	"github.com/worklance/backend/internal/services"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
	log           *zap.Logger
}

func NewEscrowHandler(escrowService *services.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService, log: log}
}

// Derive computes the deterministic escrow address for (payer, job id).
// Pure computation, no ledger access.
func (h *EscrowHandler) Derive(c *fiber.Ctx) error {
	var req dto.DeriveEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	payer, err := solana.PublicKeyFromBase58(req.PayerWallet)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid payer_wallet"})
	}

	addr, bump, err := ledger.DeriveEscrowAddress(payer, req.BlockchainJobID)
	if err != nil {
		return c.Status(statusFromErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DeriveEscrowResponse{
		EscrowAddress: addr.String(),
		Bump:          bump,
	}})
}

// Verify checks a client-funded escrow against the ledger and bootstraps the
// mirror.
func (h *EscrowHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid job_id"})
	}
	payeeUserID, err := uuid.Parse(req.PayeeUserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid payee_user_id"})
	}

	out, err := h.escrowService.VerifyAndRecord(c.Context(), services.VerifyInput{
		JobID:               jobID,
		PayeeUserID:         payeeUserID,
		PayeeWallet:         req.PayeeWallet,
		EscrowAddress:       req.EscrowAddress,
		TotalStakedLamports: req.TotalStakedLamports,
		Signature:           req.Signature,
	})
	if err != nil {
		h.log.Warn("escrow verification failed",
			zap.String("job_id", req.JobID),
			zap.String("user_id", middleware.GetUserID(c).String()),
			zap.Error(err),
		)
		return c.Status(statusFromErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	status := fiber.StatusOK
	if out.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.SuccessResponse{OK: true, Data: out})
}

// Status returns the mirror snapshot for a ledger job id: staking totals and
// milestone statuses as last converged. Live chain reads live on a separate
// route.
func (h *EscrowHandler) Status(c *fiber.Ctx) error {
	blockchainJobID := c.Params("jobId")
	if blockchainJobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "job id is required"})
	}

	out, err := h.escrowService.MirrorByBlockchainID(c.Context(), blockchainJobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "job not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

// LedgerStatus reads the live escrow account for a ledger job id.
func (h *EscrowHandler) LedgerStatus(c *fiber.Ctx) error {
	blockchainJobID := c.Params("jobId")
	if blockchainJobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "job id is required"})
	}

	out, err := h.escrowService.LedgerStatus(c.Context(), blockchainJobID)
	if err != nil {
		return c.Status(statusFromErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

// Mirror returns the database-side escrow view of a job.
func (h *EscrowHandler) Mirror(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid job id"})
	}

	out, err := h.escrowService.Mirror(c.Context(), jobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "job not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}
