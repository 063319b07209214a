package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/worklance/backend/internal/models"
)

type ProjectRepo struct {
	db DBTX
}

func NewProjectRepo(db DBTX) *ProjectRepo {
	return &ProjectRepo{db: db}
}

func (r *ProjectRepo) WithTx(tx DBTX) *ProjectRepo { return &ProjectRepo{db: tx} }

func (r *ProjectRepo) Create(ctx context.Context, p *models.Project) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO projects (job_id, payer_user_id, payee_user_id, current_stage, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, p.JobID, p.PayerUserID, p.PayeeUserID, p.CurrentStage, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *ProjectRepo) scan(row interface{ Scan(...any) error }) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.JobID, &p.PayerUserID, &p.PayeeUserID,
		&p.CurrentStage, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return r.scan(r.db.QueryRow(ctx, `
		SELECT id, job_id, payer_user_id, payee_user_id, current_stage, status, created_at, updated_at
		FROM projects WHERE id = $1
	`, id))
}

func (r *ProjectRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Project, error) {
	return r.scan(r.db.QueryRow(ctx, `
		SELECT id, job_id, payer_user_id, payee_user_id, current_stage, status, created_at, updated_at
		FROM projects WHERE job_id = $1
	`, jobID))
}

func (r *ProjectRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.db.Exec(ctx, `UPDATE projects SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

func (r *ProjectRepo) UpdateStage(ctx context.Context, id uuid.UUID, stage int) error {
	_, err := r.db.Exec(ctx, `UPDATE projects SET current_stage = $1, updated_at = now() WHERE id = $2`, stage, id)
	return err
}

// ReconcileTarget is a project joined with the job fields the reconciliation
// engine needs for a ledger read.
type ReconcileTarget struct {
	Project         models.Project
	JobID           uuid.UUID
	BlockchainJobID string
	PayerWallet     *string
	TotalLamports   int64
}

// ListReconcileTargets returns projects eligible for a reconciliation pass.
func (r *ProjectRepo) ListReconcileTargets(ctx context.Context, includeCompleted bool) ([]ReconcileTarget, error) {
	statuses := []string{models.ProjectStatusActive}
	if includeCompleted {
		statuses = append(statuses, models.ProjectStatusCompleted)
	}

	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.job_id, p.payer_user_id, p.payee_user_id, p.current_stage, p.status,
		       p.created_at, p.updated_at,
		       j.id, j.blockchain_job_id, j.payer_wallet, j.total_payment_lamports
		FROM projects p
		JOIN jobs j ON j.id = p.job_id
		WHERE p.status = ANY($1)
		ORDER BY p.created_at
	`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []ReconcileTarget
	for rows.Next() {
		var t ReconcileTarget
		if err := rows.Scan(&t.Project.ID, &t.Project.JobID, &t.Project.PayerUserID, &t.Project.PayeeUserID,
			&t.Project.CurrentStage, &t.Project.Status, &t.Project.CreatedAt, &t.Project.UpdatedAt,
			&t.JobID, &t.BlockchainJobID, &t.PayerWallet, &t.TotalLamports); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}
