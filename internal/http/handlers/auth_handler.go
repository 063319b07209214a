package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/worklance/backend/internal/auth"
	"github.com/worklance/backend/internal/config"
	"github.com/worklance/backend/internal/http/dto"
	"github.com/worklance/backend/internal/models"
	"github.com/worklance/backend/internal/repositories"
)

type AuthHandler struct {
	userRepo *repositories.UserRepo
	nonces   *auth.NonceStore
	cfg      *config.Config
	log      *zap.Logger
}

func NewAuthHandler(userRepo *repositories.UserRepo, nonces *auth.NonceStore, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, nonces: nonces, cfg: cfg, log: log}
}

// Nonce issues a one-time sign-in nonce the wallet must include in its proof.
func (h *AuthHandler) Nonce(c *fiber.Ctx) error {
	nonce, err := h.nonces.Issue(c.Context())
	if err != nil {
		h.log.Error("nonce issue failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"nonce": nonce}})
}

// WalletAuth verifies a wallet ownership proof and returns a JWT. First
// sign-in creates the user with the requested role.
func (h *AuthHandler) WalletAuth(c *fiber.Ctx) error {
	var req dto.WalletAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	// Consume the nonce first: a failed verification still burns it.
	if err := h.nonces.Consume(c.Context(), req.Proof.Nonce); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	wallet, err := auth.VerifyWalletProof(req.Proof)
	if err != nil {
		h.log.Debug("wallet proof verification failed", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	role := req.Role
	switch role {
	case models.RoleRecruiter, models.RoleFreelancer:
	case "":
		role = models.RoleFreelancer
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "role must be recruiter or freelancer"})
	}

	user, err := h.userRepo.UpsertByWallet(c.Context(), wallet.String(), role, req.DisplayName)
	if err != nil {
		h.log.Error("user upsert failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.WalletAddress, user.Role, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("jwt generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.AuthResponse{Token: token, User: user})
}
