package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types
const (
	TxTypeStake            = "stake"
	TxTypePayment          = "payment"
	TxTypeMilestonePayment = "milestone_payment"
)

// Transaction statuses
const (
	TxStatusConfirmed = "confirmed"
	TxStatusPending   = "pending"
)

// Transaction is the append-only audit log of ledger movements seen by the
// mirror. Signature is the ledger transaction signature and is unique:
// re-ingesting the same signature is a no-op, never a duplicate row.
type Transaction struct {
	ID             uuid.UUID  `json:"id"`
	JobID          uuid.UUID  `json:"job_id"`
	ProjectID      *uuid.UUID `json:"project_id,omitempty"`
	MilestoneID    *uuid.UUID `json:"milestone_id,omitempty"`
	FromWallet     *string    `json:"from_wallet,omitempty"`
	ToWallet       *string    `json:"to_wallet,omitempty"`
	AmountLamports int64      `json:"amount_lamports"`
	Signature      string     `json:"signature"`
	TxType         string     `json:"tx_type"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}
