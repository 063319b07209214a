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
	"github.com/worklance/backend/internal/services"
)

type JobHandler struct {
	jobRepo          *repositories.JobRepo
	txRepo           *repositories.TransactionRepo
	reconcileService *services.ReconcileService
	milestoneService *services.MilestoneService
	log              *zap.Logger
}

func NewJobHandler(
	jobRepo *repositories.JobRepo,
	txRepo *repositories.TransactionRepo,
	reconcileService *services.ReconcileService,
	milestoneService *services.MilestoneService,
	log *zap.Logger,
) *JobHandler {
	return &JobHandler{
		jobRepo:          jobRepo,
		txRepo:           txRepo,
		reconcileService: reconcileService,
		milestoneService: milestoneService,
		log:              log,
	}
}

// Create registers the mirror-side job row ahead of funding.
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if req.BlockchainJobID == "" || len(req.BlockchainJobID) > ledger.MaxJobIDLen {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "blockchain_job_id must be 1..50 chars"})
	}
	if req.TotalPaymentLamports <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "total_payment_lamports must be > 0"})
	}
	if _, err := solana.PublicKeyFromBase58(req.PayerWallet); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid payer_wallet"})
	}

	job := &models.Job{
		BlockchainJobID:      req.BlockchainJobID,
		Title:                req.Title,
		PayerUserID:          middleware.GetUserID(c),
		PayerWallet:          &req.PayerWallet,
		TotalPaymentLamports: req.TotalPaymentLamports,
		Status:               models.JobStatusOpen,
	}
	if err := h.jobRepo.Create(c.Context(), job); err != nil {
		h.log.Error("job create failed", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "job id already exists or invalid"})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: job})
}

func (h *JobHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid job id"})
	}

	job, err := h.jobRepo.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "job not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: job})
}

// Sync reconciles the job's mirror with the ledger on demand.
func (h *JobHandler) Sync(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid job id"})
	}

	res, err := h.reconcileService.SyncJob(c.Context(), id)
	if err != nil {
		return c.Status(statusFromErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.SyncResponse{
		Status:         res.Status,
		UpdatesApplied: res.UpdatesApplied,
	}})
}

// FixMilestonePayments re-distributes the job total across milestones whose
// mirrored amounts are all zero.
func (h *JobHandler) FixMilestonePayments(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid job id"})
	}

	healed, err := h.reconcileService.FixMilestonePayments(c.Context(), id)
	if err != nil {
		return c.Status(statusFromErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"healed": healed}})
}

// Cancel winds down an unfunded or never-approved escrow.
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid job id"})
	}

	if err := h.milestoneService.Cancel(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return c.Status(statusFromErr(err)).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Transactions lists the job's ledger audit entries.
func (h *JobHandler) Transactions(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid job id"})
	}

	limit := c.QueryInt("limit", 50)
	txs, err := h.txRepo.ListByJob(c.Context(), id, limit)
	if err != nil {
		h.log.Error("list transactions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}
