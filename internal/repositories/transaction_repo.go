package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/worklance/backend/internal/models"
)

type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) WithTx(tx DBTX) *TransactionRepo { return &TransactionRepo{db: tx} }

// Insert appends an audit row keyed by the unique ledger signature.
// Returns false when the signature was already ingested (no-op, not an
// error).
func (r *TransactionRepo) Insert(ctx context.Context, t *models.Transaction) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO transactions (job_id, project_id, milestone_id, from_wallet, to_wallet,
		                          amount_lamports, signature, tx_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (signature) DO NOTHING
	`, t.JobID, t.ProjectID, t.MilestoneID, t.FromWallet, t.ToWallet,
		t.AmountLamports, t.Signature, t.TxType, t.Status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TransactionRepo) GetBySignature(ctx context.Context, signature string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.QueryRow(ctx, `
		SELECT id, job_id, project_id, milestone_id, from_wallet, to_wallet,
		       amount_lamports, signature, tx_type, status, created_at
		FROM transactions WHERE signature = $1
	`, signature).Scan(&t.ID, &t.JobID, &t.ProjectID, &t.MilestoneID, &t.FromWallet, &t.ToWallet,
		&t.AmountLamports, &t.Signature, &t.TxType, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) ListByJob(ctx context.Context, jobID uuid.UUID, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, job_id, project_id, milestone_id, from_wallet, to_wallet,
		       amount_lamports, signature, tx_type, status, created_at
		FROM transactions WHERE job_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.JobID, &t.ProjectID, &t.MilestoneID, &t.FromWallet, &t.ToWallet,
			&t.AmountLamports, &t.Signature, &t.TxType, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
