package dto

import "github.com/worklance/backend/internal/auth"

type WalletAuthRequest struct {
	Proof       auth.WalletProof `json:"proof"`
	Role        string           `json:"role,omitempty"` // recruiter / freelancer, first sign-in only
	DisplayName *string          `json:"display_name,omitempty"`
}

type CreateJobRequest struct {
	BlockchainJobID      string  `json:"blockchain_job_id"`
	Title                *string `json:"title,omitempty"`
	TotalPaymentLamports int64   `json:"total_payment_lamports"`
	PayerWallet          string  `json:"payer_wallet"`
}

type VerifyEscrowRequest struct {
	JobID               string  `json:"job_id"`
	PayeeUserID         string  `json:"payee_user_id"`
	PayeeWallet         *string `json:"payee_wallet,omitempty"`
	EscrowAddress       string  `json:"escrow_address"`
	TotalStakedLamports int64   `json:"total_staked_lamports,omitempty"`
	Signature           string  `json:"signature"`
}

type DeriveEscrowRequest struct {
	PayerWallet     string `json:"payer_wallet"`
	BlockchainJobID string `json:"blockchain_job_id"`
}

type SubmitMilestoneRequest struct {
	Description string   `json:"description"`
	Links       []string `json:"links,omitempty"`
	Files       []string `json:"files,omitempty"`
}

type ReviewMilestoneRequest struct {
	Action    string  `json:"action"` // approve / request_revision
	Comments  *string `json:"comments,omitempty"`
	Signature *string `json:"signature,omitempty"`
}

type ClaimMilestoneRequest struct {
	Signature string `json:"signature"`
}

type PlatformWithdrawRequest struct {
	JobID    string `json:"job_id"`
	Lamports uint64 `json:"lamports"`
}
