package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/worklance/backend/internal/config"
	"github.com/worklance/backend/internal/http/dto"
	"github.com/worklance/backend/internal/ledger"
	"github.com/worklance/backend/internal/models"
)

type MetaHandler struct {
	cfg *config.Config
}

func NewMetaHandler(cfg *config.Config) *MetaHandler {
	return &MetaHandler{cfg: cfg}
}

// Network exposes the ledger parameters clients need to build transactions.
func (h *MetaHandler) Network(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"network":          h.cfg.SolanaNetwork,
		"program_id":       ledger.EscrowProgramID.String(),
		"milestone_count":  models.MilestoneCount,
		"lamports_per_sol": models.LamportsPerSOL,
		"max_job_id_len":   ledger.MaxJobIDLen,
	}})
}
