package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/worklance/backend/internal/models"
)

type StakingRepo struct {
	db DBTX
}

func NewStakingRepo(db DBTX) *StakingRepo {
	return &StakingRepo{db: db}
}

func (r *StakingRepo) WithTx(tx DBTX) *StakingRepo { return &StakingRepo{db: tx} }

// Upsert creates or refreshes the single staking row of a project.
func (r *StakingRepo) Upsert(ctx context.Context, s *models.Staking) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO stakings (project_id, total_staked_lamports, total_released_lamports)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id) DO UPDATE SET
			total_staked_lamports = EXCLUDED.total_staked_lamports,
			total_released_lamports = EXCLUDED.total_released_lamports,
			updated_at = now()
		RETURNING id, updated_at
	`, s.ProjectID, s.TotalStakedLamports, s.TotalReleasedLamports).Scan(&s.ID, &s.UpdatedAt)
}

func (r *StakingRepo) GetByProject(ctx context.Context, projectID uuid.UUID) (*models.Staking, error) {
	var s models.Staking
	err := r.db.QueryRow(ctx, `
		SELECT id, project_id, total_staked_lamports, total_released_lamports, updated_at
		FROM stakings WHERE project_id = $1
	`, projectID).Scan(&s.ID, &s.ProjectID, &s.TotalStakedLamports, &s.TotalReleasedLamports, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AddReleased increments the optimistic released total when a milestone is
// approved.
func (r *StakingRepo) AddReleased(ctx context.Context, projectID uuid.UUID, deltaLamports int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE stakings SET total_released_lamports = total_released_lamports + $1, updated_at = now()
		WHERE project_id = $2
	`, deltaLamports, projectID)
	return err
}

func (r *StakingRepo) SetTotals(ctx context.Context, projectID uuid.UUID, stakedLamports, releasedLamports int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE stakings SET total_staked_lamports = $1, total_released_lamports = $2, updated_at = now()
		WHERE project_id = $3
	`, stakedLamports, releasedLamports, projectID)
	return err
}
