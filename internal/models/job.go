package models

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses
const (
	JobStatusOpen       = "open"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
)

// MilestoneCount is fixed by the on-chain escrow program: every job locks
// exactly three milestone amounts at funding time.
const MilestoneCount = 3

const LamportsPerSOL = 1_000_000_000

// Job is the projection of the externally-owned job record that the escrow
// engine needs: total payment, wallet identities and the escrow binding.
// Job CRUD itself lives outside this service.
type Job struct {
	ID                   uuid.UUID  `json:"id"`
	BlockchainJobID      string     `json:"blockchain_job_id"` // <= 50 chars, seed of the escrow address
	Title                *string    `json:"title,omitempty"`
	PayerUserID          uuid.UUID  `json:"payer_user_id"`
	PayeeUserID          *uuid.UUID `json:"payee_user_id,omitempty"`
	PayerWallet          *string    `json:"payer_wallet,omitempty"`
	PayeeWallet          *string    `json:"payee_wallet,omitempty"`
	TotalPaymentLamports int64      `json:"total_payment_lamports"`
	EscrowAddress        *string    `json:"escrow_address,omitempty"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// SOLToLamports converts a display amount to the ledger's smallest unit.
// Rounds to the nearest lamport to absorb float noise from JSON payloads.
func SOLToLamports(sol float64) int64 {
	return int64(sol*LamportsPerSOL + 0.5)
}

func LamportsToSOL(lamports int64) float64 {
	return float64(lamports) / LamportsPerSOL
}
