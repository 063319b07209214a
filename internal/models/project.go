package models

import (
	"time"

	"github.com/google/uuid"
)

// Project statuses
const (
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusCancelled = "cancelled"
)

// Project is created once funding of the escrow account is verified.
// CurrentStage is 1-based and advances when a milestone is approved.
type Project struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	PayerUserID  uuid.UUID `json:"payer_user_id"`
	PayeeUserID  uuid.UUID `json:"payee_user_id"`
	CurrentStage int       `json:"current_stage"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Staking mirrors the aggregate state of the on-chain escrow account:
// how much the payer locked and how much has been released to the payee.
// One row per project; totals are optimistic and converged by reconciliation.
type Staking struct {
	ID                    uuid.UUID `json:"id"`
	ProjectID             uuid.UUID `json:"project_id"`
	TotalStakedLamports   int64     `json:"total_staked_lamports"`
	TotalReleasedLamports int64     `json:"total_released_lamports"`
	UpdatedAt             time.Time `json:"updated_at"`
}
