package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/worklance/backend/internal/models"
)

type JobRepo struct {
	db DBTX
}

func NewJobRepo(db DBTX) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) WithTx(tx DBTX) *JobRepo { return &JobRepo{db: tx} }

const jobColumns = `id, blockchain_job_id, title, payer_user_id, payee_user_id,
       payer_wallet, payee_wallet, total_payment_lamports, escrow_address,
       status, created_at, updated_at`

func (r *JobRepo) scanJob(row interface{ Scan(...any) error }) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.BlockchainJobID, &j.Title, &j.PayerUserID, &j.PayeeUserID,
		&j.PayerWallet, &j.PayeeWallet, &j.TotalPaymentLamports, &j.EscrowAddress,
		&j.Status, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO jobs (blockchain_job_id, title, payer_user_id, payee_user_id,
		                  payer_wallet, payee_wallet, total_payment_lamports, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, j.BlockchainJobID, j.Title, j.PayerUserID, j.PayeeUserID,
		j.PayerWallet, j.PayeeWallet, j.TotalPaymentLamports, j.Status,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return r.scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

func (r *JobRepo) GetByBlockchainID(ctx context.Context, blockchainJobID string) (*models.Job, error) {
	return r.scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE blockchain_job_id = $1`, blockchainJobID))
}

// BindEscrow records the verified escrow address and payee on the job and
// moves it to in_progress.
func (r *JobRepo) BindEscrow(ctx context.Context, id uuid.UUID, escrowAddress string, payeeUserID uuid.UUID, payeeWallet *string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE jobs SET escrow_address = $1, payee_user_id = $2,
		       payee_wallet = COALESCE($3, payee_wallet),
		       status = $4, updated_at = now()
		WHERE id = $5
	`, escrowAddress, payeeUserID, payeeWallet, models.JobStatusInProgress, id)
	return err
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.db.Exec(ctx, `UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}
