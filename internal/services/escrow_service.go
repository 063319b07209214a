package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/worklance/backend/internal/events"
	"github.com/worklance/backend/internal/ledger"
	"github.com/worklance/backend/internal/models"
	"github.com/worklance/backend/internal/repositories"
)

// LedgerVerifier is the slice of the ledger client the verification flow
// needs.
type LedgerVerifier interface {
	VerifyFunding(ctx context.Context, payer solana.PublicKey, jobID string, expectedTotal uint64) (*ledger.VerifyResult, error)
	Status(ctx context.Context, payer solana.PublicKey, jobID string) ([]ledger.MilestoneStatus, error)
}

// EscrowService verifies client-side escrow funding against the ledger and
// bootstraps the mirror rows from the verified account state. The mirror is
// never written from an unverified claim: amounts come from the decoded
// escrow account, not the request body.
type EscrowService struct {
	pool        *pgxpool.Pool
	jobRepo     *repositories.JobRepo
	projectRepo *repositories.ProjectRepo
	msRepo      *repositories.MilestoneRepo
	stakingRepo *repositories.StakingRepo
	txRepo      *repositories.TransactionRepo
	chain       LedgerVerifier
	publisher   events.Publisher
	log         *zap.Logger
}

func NewEscrowService(
	pool *pgxpool.Pool,
	jobRepo *repositories.JobRepo,
	projectRepo *repositories.ProjectRepo,
	msRepo *repositories.MilestoneRepo,
	stakingRepo *repositories.StakingRepo,
	txRepo *repositories.TransactionRepo,
	chain LedgerVerifier,
	publisher events.Publisher,
	log *zap.Logger,
) *EscrowService {
	return &EscrowService{
		pool:        pool,
		jobRepo:     jobRepo,
		projectRepo: projectRepo,
		msRepo:      msRepo,
		stakingRepo: stakingRepo,
		txRepo:      txRepo,
		chain:       chain,
		publisher:   publisher,
		log:         log,
	}
}

// VerifyInput is the client's claim that it funded the escrow.
type VerifyInput struct {
	JobID               uuid.UUID `json:"job_id"`
	PayeeUserID         uuid.UUID `json:"payee_user_id"`
	PayeeWallet         *string   `json:"payee_wallet"`
	EscrowAddress       string    `json:"escrow_address"` // address the client claims to have funded
	TotalStakedLamports int64     `json:"total_staked_lamports,omitempty"`
	Signature           string    `json:"signature"` // ledger tx signature of the funding instruction
}

// checkFundingClaim compares the client's claimed escrow coordinates against
// the derived address and the job total. The claim never feeds the mirror,
// but a mismatch means the client funded the wrong account.
func checkFundingClaim(claimedAddr string, derived solana.PublicKey, claimedTotal, jobTotal int64) error {
	if claimedAddr == "" {
		return fmt.Errorf("%w: escrow_address is required", models.ErrInvalidInput)
	}
	if claimedAddr != derived.String() {
		return fmt.Errorf("%w: escrow address %s does not match derived address %s",
			models.ErrInvalidInput, claimedAddr, derived)
	}
	if claimedTotal != 0 && claimedTotal != jobTotal {
		return fmt.Errorf("%w: claimed total %d does not match job total %d",
			models.ErrInvalidInput, claimedTotal, jobTotal)
	}
	return nil
}

// VerifyOutcome reports a verified funding and the bootstrapped mirror rows.
type VerifyOutcome struct {
	EscrowAddress string          `json:"escrow_address"`
	Project       *models.Project `json:"project"`
	Created       bool            `json:"created"` // false when the mirror already existed
}

// VerifyAndRecord checks the escrow account on the ledger and, on first
// verification, creates the project, its milestones, the staking row and the
// stake audit entry in one transaction. Idempotent: repeat calls for an
// already-mirrored job return the existing project.
func (s *EscrowService) VerifyAndRecord(ctx context.Context, in VerifyInput) (*VerifyOutcome, error) {
	if in.Signature == "" {
		return nil, fmt.Errorf("%w: funding signature is required", models.ErrInvalidInput)
	}

	job, err := s.jobRepo.GetByID(ctx, in.JobID)
	if err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	if job.PayerWallet == nil || *job.PayerWallet == "" {
		return nil, fmt.Errorf("%w: job has no recorded payer wallet", models.ErrInvalidInput)
	}
	payer, err := solana.PublicKeyFromBase58(*job.PayerWallet)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid payer wallet %q", models.ErrInvalidInput, *job.PayerWallet)
	}

	addr, _, err := ledger.DeriveEscrowAddress(payer, job.BlockchainJobID)
	if err != nil {
		return nil, err
	}
	if err := checkFundingClaim(in.EscrowAddress, addr, in.TotalStakedLamports, job.TotalPaymentLamports); err != nil {
		return nil, err
	}

	res, err := s.chain.VerifyFunding(ctx, payer, job.BlockchainJobID, uint64(job.TotalPaymentLamports))
	if err != nil {
		return nil, err
	}
	if !res.Verified {
		return nil, fmt.Errorf("%w: escrow %s balance %d below expected total %d",
			models.ErrInsufficientBalance, addr, res.BalanceLamports, job.TotalPaymentLamports)
	}

	if existing, err := s.projectRepo.GetByJobID(ctx, in.JobID); err == nil {
		return &VerifyOutcome{EscrowAddress: addr.String(), Project: existing, Created: false}, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var totalStaked int64
	for _, ms := range res.Milestones {
		totalStaked += int64(ms.AmountLamports)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	project := &models.Project{
		JobID:        job.ID,
		PayerUserID:  job.PayerUserID,
		PayeeUserID:  in.PayeeUserID,
		CurrentStage: 1,
		Status:       models.ProjectStatusActive,
	}
	if err := s.projectRepo.WithTx(tx).Create(ctx, project); err != nil {
		return nil, err
	}

	msRepo := s.msRepo.WithTx(tx)
	for _, ms := range res.Milestones {
		if err := msRepo.Create(ctx, &models.Milestone{
			ProjectID:       project.ID,
			StageNumber:     ms.Index + 1,
			PaymentLamports: int64(ms.AmountLamports),
			Status:          models.MilestoneStatusPending,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.stakingRepo.WithTx(tx).Upsert(ctx, &models.Staking{
		ProjectID:           project.ID,
		TotalStakedLamports: totalStaked,
	}); err != nil {
		return nil, err
	}

	if _, err := s.txRepo.WithTx(tx).Insert(ctx, &models.Transaction{
		JobID:          job.ID,
		ProjectID:      &project.ID,
		FromWallet:     job.PayerWallet,
		ToWallet:       strPtr(addr.String()),
		AmountLamports: totalStaked,
		Signature:      in.Signature,
		TxType:         models.TxTypeStake,
		Status:         models.TxStatusConfirmed,
	}); err != nil {
		return nil, err
	}

	if err := s.jobRepo.WithTx(tx).BindEscrow(ctx, job.ID, addr.String(), in.PayeeUserID, in.PayeeWallet); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type: events.EventEscrowFunded,
		Payload: map[string]any{
			"job_id":         job.ID.String(),
			"project_id":     project.ID.String(),
			"escrow_address": addr.String(),
			"total_lamports": totalStaked,
		},
	})
	s.log.Info("escrow funding verified",
		zap.String("job_id", job.ID.String()),
		zap.String("escrow", addr.String()),
		zap.Int64("total_lamports", totalStaked),
	)

	return &VerifyOutcome{EscrowAddress: addr.String(), Project: project, Created: true}, nil
}

// EscrowStatus is the ledger-truth snapshot returned to clients.
type EscrowStatus struct {
	EscrowAddress string                   `json:"escrow_address"`
	Milestones    []ledger.MilestoneStatus `json:"milestones"`
}

// LedgerStatus reads the live escrow account for a job. No mirror access.
func (s *EscrowService) LedgerStatus(ctx context.Context, blockchainJobID string) (*EscrowStatus, error) {
	job, err := s.jobRepo.GetByBlockchainID(ctx, blockchainJobID)
	if err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	if job.PayerWallet == nil || *job.PayerWallet == "" {
		return nil, fmt.Errorf("%w: job has no recorded payer wallet", models.ErrInvalidInput)
	}
	payer, err := solana.PublicKeyFromBase58(*job.PayerWallet)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid payer wallet %q", models.ErrInvalidInput, *job.PayerWallet)
	}

	addr, _, err := ledger.DeriveEscrowAddress(payer, job.BlockchainJobID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.chain.Status(ctx, payer, job.BlockchainJobID)
	if err != nil {
		return nil, err
	}
	return &EscrowStatus{EscrowAddress: addr.String(), Milestones: statuses}, nil
}

// MirrorStatus returns the mirror-side view of a job's escrow.
type MirrorStatus struct {
	Job        *models.Job        `json:"job"`
	Project    *models.Project    `json:"project,omitempty"`
	Milestones []models.Milestone `json:"milestones,omitempty"`
	Staking    *models.Staking    `json:"staking,omitempty"`
}

func (s *EscrowService) Mirror(ctx context.Context, jobID uuid.UUID) (*MirrorStatus, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	return s.mirrorForJob(ctx, job)
}

// MirrorByBlockchainID serves the escrow status route, which is keyed by the
// ledger-side job id rather than the job row's uuid.
func (s *EscrowService) MirrorByBlockchainID(ctx context.Context, blockchainJobID string) (*MirrorStatus, error) {
	job, err := s.jobRepo.GetByBlockchainID(ctx, blockchainJobID)
	if err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	return s.mirrorForJob(ctx, job)
}

func (s *EscrowService) mirrorForJob(ctx context.Context, job *models.Job) (*MirrorStatus, error) {
	out := &MirrorStatus{Job: job}

	project, err := s.projectRepo.GetByJobID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return out, nil
		}
		return nil, err
	}
	out.Project = project

	if out.Milestones, err = s.msRepo.ListByProject(ctx, project.ID); err != nil {
		return nil, err
	}
	if out.Staking, err = s.stakingRepo.GetByProject(ctx, project.ID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

func strPtr(s string) *string { return &s }
