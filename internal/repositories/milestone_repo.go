package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/worklance/backend/internal/models"
)

type MilestoneRepo struct {
	db DBTX
}

func NewMilestoneRepo(db DBTX) *MilestoneRepo {
	return &MilestoneRepo{db: db}
}

func (r *MilestoneRepo) WithTx(tx DBTX) *MilestoneRepo { return &MilestoneRepo{db: tx} }

const milestoneColumns = `id, project_id, stage_number, payment_lamports, status,
       description, links, files, submitted_at,
       review_comments, reviewed_at, payment_released, created_at, updated_at`

func (r *MilestoneRepo) scan(row interface{ Scan(...any) error }) (*models.Milestone, error) {
	var m models.Milestone
	var links, files []byte
	err := row.Scan(&m.ID, &m.ProjectID, &m.StageNumber, &m.PaymentLamports, &m.Status,
		&m.Description, &links, &files, &m.SubmittedAt,
		&m.ReviewComments, &m.ReviewedAt, &m.PaymentReleased, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if links != nil {
		_ = json.Unmarshal(links, &m.Links)
	}
	if files != nil {
		_ = json.Unmarshal(files, &m.Files)
	}
	return &m, nil
}

func (r *MilestoneRepo) Create(ctx context.Context, m *models.Milestone) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO milestones (project_id, stage_number, payment_lamports, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, m.ProjectID, m.StageNumber, m.PaymentLamports, m.Status,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (r *MilestoneRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return r.scan(r.db.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id))
}

// ListByProject returns the project's milestones ordered by stage number.
func (r *MilestoneRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+milestoneColumns+` FROM milestones
		WHERE project_id = $1 ORDER BY stage_number
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Milestone
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *MilestoneRepo) UpdateSubmission(ctx context.Context, id uuid.UUID, description string, links, files []string, submittedAt time.Time) error {
	linksJSON, _ := json.Marshal(links)
	filesJSON, _ := json.Marshal(files)
	_, err := r.db.Exec(ctx, `
		UPDATE milestones SET status = $1, description = $2, links = $3, files = $4,
		       submitted_at = $5, updated_at = now()
		WHERE id = $6
	`, models.MilestoneStatusSubmitted, description, linksJSON, filesJSON, submittedAt, id)
	return err
}

func (r *MilestoneRepo) UpdateReview(ctx context.Context, id uuid.UUID, status string, comments *string, reviewedAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE milestones SET status = $1, review_comments = $2, reviewed_at = $3, updated_at = now()
		WHERE id = $4
	`, status, comments, reviewedAt, id)
	return err
}

// MarkApproved sets the optimistic release flag alongside the status; the
// actual fund movement is the payee's claim against the ledger.
func (r *MilestoneRepo) MarkApproved(ctx context.Context, id uuid.UUID, reviewedAt time.Time, comments *string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE milestones SET status = $1, payment_released = TRUE,
		       review_comments = $2, reviewed_at = $3, updated_at = now()
		WHERE id = $4
	`, models.MilestoneStatusApproved, comments, reviewedAt, id)
	return err
}

func (r *MilestoneRepo) MarkClaimed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE milestones SET status = $1, payment_released = TRUE, updated_at = now()
		WHERE id = $2
	`, models.MilestoneStatusClaimed, id)
	return err
}

func (r *MilestoneRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.db.Exec(ctx, `UPDATE milestones SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

func (r *MilestoneRepo) UpdatePayment(ctx context.Context, id uuid.UUID, lamports int64) error {
	_, err := r.db.Exec(ctx, `UPDATE milestones SET payment_lamports = $1, updated_at = now() WHERE id = $2`, lamports, id)
	return err
}

// ApplyCorrection applies a reconciliation correction row in one statement.
// Flags are one-directional: TRUE values stick, FALSE never overwrites TRUE.
func (r *MilestoneRepo) ApplyCorrection(ctx context.Context, id uuid.UUID, status string, paymentLamports int64, paymentReleased bool) error {
	_, err := r.db.Exec(ctx, `
		UPDATE milestones SET status = $1, payment_lamports = $2,
		       payment_released = payment_released OR $3, updated_at = now()
		WHERE id = $4
	`, status, paymentLamports, paymentReleased, id)
	return err
}
