package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/worklance/backend/internal/config"
	"github.com/worklance/backend/internal/events"
	"github.com/worklance/backend/internal/models"
	"github.com/worklance/backend/internal/repositories"
)

// MilestoneService drives the milestone lifecycle on the mirror side:
// submit -> review (approve / request revision) -> claim. Ledger instruction
// submission is the client wallet's job; the service validates, records and
// converges.
type MilestoneService struct {
	pool        *pgxpool.Pool
	jobRepo     *repositories.JobRepo
	projectRepo *repositories.ProjectRepo
	msRepo      *repositories.MilestoneRepo
	stakingRepo *repositories.StakingRepo
	txRepo      *repositories.TransactionRepo
	publisher   events.Publisher
	locker      *ProjectLocker
	strictOrder bool
	log         *zap.Logger
}

func NewMilestoneService(
	pool *pgxpool.Pool,
	jobRepo *repositories.JobRepo,
	projectRepo *repositories.ProjectRepo,
	msRepo *repositories.MilestoneRepo,
	stakingRepo *repositories.StakingRepo,
	txRepo *repositories.TransactionRepo,
	publisher events.Publisher,
	locker *ProjectLocker,
	cfg *config.Config,
	log *zap.Logger,
) *MilestoneService {
	return &MilestoneService{
		pool:        pool,
		jobRepo:     jobRepo,
		projectRepo: projectRepo,
		msRepo:      msRepo,
		stakingRepo: stakingRepo,
		txRepo:      txRepo,
		publisher:   publisher,
		locker:      locker,
		strictOrder: cfg.StrictMilestoneOrder,
		log:         log,
	}
}

// SubmitInput is the payee's work delivery payload.
type SubmitInput struct {
	Description string   `json:"description"`
	Links       []string `json:"links"`
	Files       []string `json:"files"`
}

// ReviewInput is the payer's verdict on a submitted milestone.
type ReviewInput struct {
	Action    string  `json:"action"` // approve | request_revision
	Comments  *string `json:"comments"`
	Signature *string `json:"signature"` // ledger tx signature of the approve instruction
}

// approvalSignature keys the approval transaction row. When the payer's
// on-ledger approve signature is not supplied, a deterministic synthetic key
// keeps the row unique and re-approval idempotent.
func approvalSignature(sig *string, milestoneID uuid.UUID) string {
	if sig != nil && *sig != "" {
		return *sig
	}
	return "approval:" + milestoneID.String()
}

// checkSubmittable validates ordering and state for a (re-)submission.
// Pure; extracted so the ordering policy is testable without a database.
func checkSubmittable(m *models.Milestone, currentStage int, strictOrder bool) error {
	if !models.IsSubmittable(m.Status) {
		return fmt.Errorf("%w: milestone in status %s cannot be submitted", models.ErrInvalidInput, m.Status)
	}
	if strictOrder && m.StageNumber != currentStage {
		return fmt.Errorf("%w: stage %d is not the current stage (%d)", models.ErrInvalidInput, m.StageNumber, currentStage)
	}
	return nil
}

// Submit records the payee's work delivery and moves the milestone to
// submitted. Re-submission replaces the previous payload.
func (s *MilestoneService) Submit(ctx context.Context, milestoneID, userID uuid.UUID, in SubmitInput) (*models.Milestone, error) {
	if in.Description == "" {
		return nil, fmt.Errorf("%w: description is required", models.ErrInvalidInput)
	}

	m, err := s.msRepo.GetByID(ctx, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("milestone not found: %w", err)
	}
	project, err := s.projectRepo.GetByID(ctx, m.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.PayeeUserID != userID {
		return nil, fmt.Errorf("%w: only the payee submits work", models.ErrAccessDenied)
	}
	if project.Status != models.ProjectStatusActive {
		return nil, fmt.Errorf("%w: project is %s", models.ErrInvalidInput, project.Status)
	}

	unlock := s.locker.Lock(project.ID)
	defer unlock()

	// Re-read under the lock, state may have moved.
	if m, err = s.msRepo.GetByID(ctx, milestoneID); err != nil {
		return nil, err
	}
	if err := checkSubmittable(m, project.CurrentStage, s.strictOrder); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.msRepo.UpdateSubmission(ctx, m.ID, in.Description, in.Links, in.Files, now); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type: events.EventMilestoneSubmitted,
		Payload: map[string]any{
			"project_id":   project.ID.String(),
			"milestone_id": m.ID.String(),
			"stage":        m.StageNumber,
		},
	})
	s.log.Info("milestone submitted",
		zap.String("milestone_id", m.ID.String()),
		zap.Int("stage", m.StageNumber),
	)

	return s.msRepo.GetByID(ctx, milestoneID)
}

// Review handles the payer's verdict. Approval optimistically releases the
// milestone amount in the mirror and advances the project stage; on the last
// stage the project and job complete. Revision requests send the milestone
// back to the payee with comments.
func (s *MilestoneService) Review(ctx context.Context, milestoneID, userID uuid.UUID, in ReviewInput) (*models.Milestone, error) {
	if in.Action != models.ReviewActionApprove && in.Action != models.ReviewActionRequestRevision {
		return nil, fmt.Errorf("%w: unknown review action %q", models.ErrInvalidInput, in.Action)
	}

	m, err := s.msRepo.GetByID(ctx, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("milestone not found: %w", err)
	}
	project, err := s.projectRepo.GetByID(ctx, m.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.PayerUserID != userID {
		return nil, fmt.Errorf("%w: only the payer reviews work", models.ErrAccessDenied)
	}
	if project.Status != models.ProjectStatusActive {
		return nil, fmt.Errorf("%w: project is %s", models.ErrInvalidInput, project.Status)
	}

	unlock := s.locker.Lock(project.ID)
	defer unlock()

	if m, err = s.msRepo.GetByID(ctx, milestoneID); err != nil {
		return nil, err
	}
	if m.Status != models.MilestoneStatusSubmitted {
		if in.Action == models.ReviewActionApprove && m.PaymentReleased {
			return nil, fmt.Errorf("%w: stage %d", models.ErrMilestoneAlreadyApproved, m.StageNumber)
		}
		return nil, fmt.Errorf("%w: milestone in status %s cannot be reviewed", models.ErrInvalidInput, m.Status)
	}

	now := time.Now().UTC()

	if in.Action == models.ReviewActionRequestRevision {
		if err := s.msRepo.UpdateReview(ctx, m.ID, models.MilestoneStatusRevisionRequested, in.Comments, now); err != nil {
			return nil, err
		}
		_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type: events.EventRevisionRequested,
			Payload: map[string]any{
				"project_id":   project.ID.String(),
				"milestone_id": m.ID.String(),
				"stage":        m.StageNumber,
			},
		})
		return s.msRepo.GetByID(ctx, milestoneID)
	}

	job, err := s.jobRepo.GetByID(ctx, project.JobID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.msRepo.WithTx(tx).MarkApproved(ctx, m.ID, now, in.Comments); err != nil {
		return nil, err
	}
	if err := s.stakingRepo.WithTx(tx).AddReleased(ctx, project.ID, m.PaymentLamports); err != nil {
		return nil, err
	}
	if _, err := s.txRepo.WithTx(tx).Insert(ctx, &models.Transaction{
		JobID:          job.ID,
		ProjectID:      &project.ID,
		MilestoneID:    &m.ID,
		FromWallet:     job.PayerWallet,
		ToWallet:       job.PayeeWallet,
		AmountLamports: m.PaymentLamports,
		Signature:      approvalSignature(in.Signature, m.ID),
		TxType:         models.TxTypeMilestonePayment,
		Status:         models.TxStatusConfirmed,
	}); err != nil {
		return nil, err
	}

	lastStage := m.StageNumber >= models.MilestoneCount
	if lastStage {
		if err := s.projectRepo.WithTx(tx).UpdateStatus(ctx, project.ID, models.ProjectStatusCompleted); err != nil {
			return nil, err
		}
		if err := s.jobRepo.WithTx(tx).UpdateStatus(ctx, job.ID, models.JobStatusCompleted); err != nil {
			return nil, err
		}
	} else if m.StageNumber == project.CurrentStage {
		if err := s.projectRepo.WithTx(tx).UpdateStage(ctx, project.ID, project.CurrentStage+1); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type: events.EventMilestoneApproved,
		Payload: map[string]any{
			"project_id":   project.ID.String(),
			"milestone_id": m.ID.String(),
			"stage":        m.StageNumber,
			"lamports":     m.PaymentLamports,
		},
	})
	if lastStage {
		_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type:    events.EventProjectCompleted,
			Payload: map[string]any{"project_id": project.ID.String()},
		})
	}
	s.log.Info("milestone approved",
		zap.String("milestone_id", m.ID.String()),
		zap.Int("stage", m.StageNumber),
		zap.Int64("lamports", m.PaymentLamports),
	)

	return s.msRepo.GetByID(ctx, milestoneID)
}

// Claim records the payee's on-ledger claim of an approved milestone.
// Keyed by the ledger signature: replaying the same signature is a no-op.
func (s *MilestoneService) Claim(ctx context.Context, milestoneID, userID uuid.UUID, signature string) (*models.Milestone, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: ledger signature is required", models.ErrInvalidInput)
	}

	m, err := s.msRepo.GetByID(ctx, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("milestone not found: %w", err)
	}
	project, err := s.projectRepo.GetByID(ctx, m.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.PayeeUserID != userID {
		return nil, fmt.Errorf("%w: only the payee claims payouts", models.ErrAccessDenied)
	}

	unlock := s.locker.Lock(project.ID)
	defer unlock()

	if m, err = s.msRepo.GetByID(ctx, milestoneID); err != nil {
		return nil, err
	}
	switch m.Status {
	case models.MilestoneStatusApproved:
	case models.MilestoneStatusClaimed, models.MilestoneStatusCompleted:
		return nil, fmt.Errorf("%w: stage %d", models.ErrMilestoneAlreadyClaimed, m.StageNumber)
	default:
		return nil, fmt.Errorf("%w: stage %d", models.ErrMilestoneNotApproved, m.StageNumber)
	}

	job, err := s.jobRepo.GetByID(ctx, project.JobID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	inserted, err := s.txRepo.WithTx(tx).Insert(ctx, &models.Transaction{
		JobID:          job.ID,
		ProjectID:      &project.ID,
		MilestoneID:    &m.ID,
		FromWallet:     job.PayerWallet,
		ToWallet:       job.PayeeWallet,
		AmountLamports: m.PaymentLamports,
		Signature:      signature,
		TxType:         models.TxTypePayment,
		Status:         models.TxStatusConfirmed,
	})
	if err != nil {
		return nil, err
	}
	if err := s.msRepo.WithTx(tx).MarkClaimed(ctx, m.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if inserted {
		_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type: events.EventMilestoneClaimed,
			Payload: map[string]any{
				"project_id":   project.ID.String(),
				"milestone_id": m.ID.String(),
				"stage":        m.StageNumber,
				"lamports":     m.PaymentLamports,
			},
		})
	}

	return s.msRepo.GetByID(ctx, milestoneID)
}

// Cancel winds a project down before any approval. Mirrors the ledger
// program's rule: once a milestone is approved the escrow cannot be
// cancelled, funds belong to the payee.
func (s *MilestoneService) Cancel(ctx context.Context, jobID, userID uuid.UUID) error {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("job not found: %w", err)
	}
	if job.PayerUserID != userID {
		return fmt.Errorf("%w: only the payer cancels the escrow", models.ErrAccessDenied)
	}
	project, err := s.projectRepo.GetByJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("%w: job has no mirrored project", models.ErrInvalidInput)
	}

	unlock := s.locker.Lock(project.ID)
	defer unlock()

	milestones, err := s.msRepo.ListByProject(ctx, project.ID)
	if err != nil {
		return err
	}
	for _, m := range milestones {
		if m.PaymentReleased || m.Status == models.MilestoneStatusApproved ||
			m.Status == models.MilestoneStatusClaimed || m.Status == models.MilestoneStatusCompleted {
			return fmt.Errorf("%w: stage %d already approved", models.ErrCannotCancelAfterApproval, m.StageNumber)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.projectRepo.WithTx(tx).UpdateStatus(ctx, project.ID, models.ProjectStatusCancelled); err != nil {
		return err
	}
	if err := s.jobRepo.WithTx(tx).UpdateStatus(ctx, job.ID, models.JobStatusCancelled); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type:    events.EventProjectCancelled,
		Payload: map[string]any{"project_id": project.ID.String(), "job_id": job.ID.String()},
	})
	s.log.Info("project cancelled", zap.String("job_id", job.ID.String()))

	return nil
}
