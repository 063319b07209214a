package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/worklance/backend/internal/config"
	"github.com/worklance/backend/internal/events"
	"github.com/worklance/backend/internal/ledger"
	"github.com/worklance/backend/internal/models"
	"github.com/worklance/backend/internal/repositories"
)

// Sync result statuses
const (
	SyncStatusSynced   = "synced"    // mirror already matches the ledger
	SyncStatusOutdated = "outdated"  // corrections were applied
	SyncStatusNoEscrow = "no_escrow" // escrow account does not exist yet
)

// SyncResult reports the outcome of one reconciliation pass. Every applied
// correction is listed for auditability; drift is never silently dropped.
type SyncResult struct {
	Status         string   `json:"status"`
	UpdatesApplied []string `json:"updates_applied"`
}

// LedgerReader is the read-only slice of the ledger client the engine needs.
type LedgerReader interface {
	Status(ctx context.Context, payer solana.PublicKey, jobID string) ([]ledger.MilestoneStatus, error)
}

// DriftPolicy decides whether a scalar discrepancy is real divergence or
// fee/rounding noise. Both gates are inclusive and both must pass: the
// relative gate keeps the documented percentage behavior, the absolute gate
// (denominated in lamports) stops thrashing near zero where percentages are
// meaningless.
type DriftPolicy struct {
	RelTolerance float64
	AbsEpsilon   int64
}

func (p DriftPolicy) exceeded(mirror, chain int64) bool {
	diff := chain - mirror
	if diff < 0 {
		diff = -diff
	}
	if diff < p.AbsEpsilon {
		return false
	}
	var rel float64
	switch {
	case mirror > 0:
		rel = float64(diff) / float64(mirror)
	case chain > 0:
		rel = 100
	default:
		return false
	}
	return rel >= p.RelTolerance
}

// ReconcileService converges the relational mirror toward ledger truth. It
// is the single sync implementation: idempotent, safe to run on every poll,
// after every client "verify" action and on crash recovery.
type ReconcileService struct {
	pool           *pgxpool.Pool
	jobRepo        *repositories.JobRepo
	projectRepo    *repositories.ProjectRepo
	milestoneRepo  *repositories.MilestoneRepo
	stakingRepo    *repositories.StakingRepo
	auditRepo      *repositories.AuditRepo
	chain          LedgerReader
	publisher      events.Publisher
	locker         *ProjectLocker
	policy         DriftPolicy
	allowCompleted bool
	log            *zap.Logger
	group          singleflight.Group
}

func NewReconcileService(
	pool *pgxpool.Pool,
	jobRepo *repositories.JobRepo,
	projectRepo *repositories.ProjectRepo,
	milestoneRepo *repositories.MilestoneRepo,
	stakingRepo *repositories.StakingRepo,
	auditRepo *repositories.AuditRepo,
	chain LedgerReader,
	publisher events.Publisher,
	locker *ProjectLocker,
	cfg *config.Config,
	log *zap.Logger,
) *ReconcileService {
	return &ReconcileService{
		pool:          pool,
		jobRepo:       jobRepo,
		projectRepo:   projectRepo,
		milestoneRepo: milestoneRepo,
		stakingRepo:   stakingRepo,
		auditRepo:     auditRepo,
		chain:         chain,
		publisher:     publisher,
		locker:        locker,
		log:           log,
		policy: DriftPolicy{
			RelTolerance: cfg.DriftRelTolerance,
			AbsEpsilon:   cfg.DriftAbsEpsilon,
		},
		allowCompleted: cfg.SyncCompletedJobs,
	}
}

// mirrorState is the snapshot the diffing operates on.
type mirrorState struct {
	project              models.Project
	staking              models.Staking
	milestones           []models.Milestone // ordered by stage number
	totalPaymentLamports int64
}

// milestoneCorrection carries the converged values for one milestone row.
type milestoneCorrection struct {
	id              uuid.UUID
	stage           int
	status          string
	paymentLamports int64
	paymentReleased bool
}

type correctionSet struct {
	setStakingTotals bool
	stakedLamports   int64
	releasedLamports int64
	milestones       []milestoneCorrection
	completeProject  bool
	audits           []string
}

func (c *correctionSet) empty() bool {
	return !c.setStakingTotals && len(c.milestones) == 0 && !c.completeProject
}

// computeCorrections diffs the mirror against the ledger snapshot and
// returns the minimal correction set. Pure function.
//
// Boolean flags are one-directional: the ledger only ever flips approval
// and claim flags false -> true, so a mirror flag that is already true is
// never reverted regardless of what a (stale or partial) snapshot says.
func computeCorrections(m mirrorState, chain []ledger.MilestoneStatus, policy DriftPolicy) correctionSet {
	var out correctionSet

	var chainStaked, chainReleased int64
	allApproved := len(chain) > 0
	for _, cs := range chain {
		chainStaked += int64(cs.AmountLamports)
		if cs.Approved {
			chainReleased += int64(cs.AmountLamports)
		} else {
			allApproved = false
		}
	}

	staked := m.staking.TotalStakedLamports
	released := m.staking.TotalReleasedLamports
	if policy.exceeded(staked, chainStaked) {
		out.audits = append(out.audits, fmt.Sprintf("staking.total_staked: %d -> %d", staked, chainStaked))
		staked = chainStaked
		out.setStakingTotals = true
	}
	if policy.exceeded(released, chainReleased) {
		out.audits = append(out.audits, fmt.Sprintf("staking.total_released: %d -> %d", released, chainReleased))
		released = chainReleased
		out.setStakingTotals = true
	}
	out.stakedLamports = staked
	out.releasedLamports = released

	for _, ms := range m.milestones {
		idx := ms.StageNumber - 1
		if idx < 0 || idx >= len(chain) {
			continue
		}
		cs := chain[idx]

		corr := milestoneCorrection{
			id:              ms.ID,
			stage:           ms.StageNumber,
			status:          ms.Status,
			paymentLamports: ms.PaymentLamports,
			paymentReleased: ms.PaymentReleased,
		}
		changed := false

		if policy.exceeded(ms.PaymentLamports, int64(cs.AmountLamports)) {
			out.audits = append(out.audits, fmt.Sprintf("milestone[%d].payment: %d -> %d",
				ms.StageNumber, ms.PaymentLamports, int64(cs.AmountLamports)))
			corr.paymentLamports = int64(cs.AmountLamports)
			changed = true
		}

		if cs.Claimed && (ms.Status != models.MilestoneStatusClaimed && ms.Status != models.MilestoneStatusCompleted) {
			out.audits = append(out.audits, fmt.Sprintf("milestone[%d].status: %s -> %s (claimed on ledger)",
				ms.StageNumber, ms.Status, models.MilestoneStatusCompleted))
			corr.status = models.MilestoneStatusCompleted
			corr.paymentReleased = true
			changed = true
		} else if cs.Approved && !ms.PaymentReleased &&
			ms.Status != models.MilestoneStatusApproved &&
			ms.Status != models.MilestoneStatusClaimed &&
			ms.Status != models.MilestoneStatusCompleted {
			out.audits = append(out.audits, fmt.Sprintf("milestone[%d].status: %s -> %s (approved on ledger)",
				ms.StageNumber, ms.Status, models.MilestoneStatusApproved))
			corr.status = models.MilestoneStatusApproved
			corr.paymentReleased = true
			changed = true
		}

		if changed {
			out.milestones = append(out.milestones, corr)
		}
	}

	if allApproved && m.project.Status != models.ProjectStatusCompleted {
		out.audits = append(out.audits, fmt.Sprintf("project.status: %s -> %s (all milestones approved)",
			m.project.Status, models.ProjectStatusCompleted))
		out.completeProject = true
	}

	return out
}

// healMilestonePayments distributes the job total evenly across the fixed
// milestone count when every mirrored amount is zero. Returns the per-stage
// amounts (remainder lamports land on the last stage) or nil when no healing
// is needed.
func healMilestonePayments(milestones []models.Milestone, totalLamports int64) []int64 {
	if totalLamports <= 0 || len(milestones) == 0 {
		return nil
	}
	for _, m := range milestones {
		if m.PaymentLamports != 0 {
			return nil
		}
	}
	n := int64(len(milestones))
	each := totalLamports / n
	amounts := make([]int64, n)
	for i := range amounts {
		amounts[i] = each
	}
	amounts[n-1] += totalLamports - each*n
	return amounts
}

// SyncJob reconciles one job's mirror with the ledger. Concurrent calls for
// the same job coalesce; the per-project lock serializes against state
// machine writes.
func (s *ReconcileService) SyncJob(ctx context.Context, jobID uuid.UUID) (*SyncResult, error) {
	res, err, _ := s.group.Do(jobID.String(), func() (any, error) {
		return s.syncJob(ctx, jobID)
	})
	if err != nil {
		return nil, err
	}
	return res.(*SyncResult), nil
}

func (s *ReconcileService) syncJob(ctx context.Context, jobID uuid.UUID) (*SyncResult, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	project, err := s.projectRepo.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: job has no mirrored project", models.ErrInvalidInput)
	}

	if project.Status != models.ProjectStatusActive &&
		!(s.allowCompleted && project.Status == models.ProjectStatusCompleted) {
		return nil, fmt.Errorf("%w: project status %s is not reconcilable", models.ErrInvalidInput, project.Status)
	}
	if job.PayerWallet == nil || *job.PayerWallet == "" {
		return nil, fmt.Errorf("%w: job has no recorded payer wallet", models.ErrInvalidInput)
	}
	payer, err := solana.PublicKeyFromBase58(*job.PayerWallet)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid payer wallet %q", models.ErrInvalidInput, *job.PayerWallet)
	}

	unlock := s.locker.Lock(project.ID)
	defer unlock()

	// The snapshot comes first: a job whose escrow account does not exist yet
	// gets no mirror writes at all, not even the payment self-heal.
	chain, err := s.chain.Status(ctx, payer, job.BlockchainJobID)
	if err != nil {
		if errors.Is(err, models.ErrEscrowNotFound) {
			return &SyncResult{Status: SyncStatusNoEscrow}, nil
		}
		return nil, err
	}

	if _, err := s.fixMilestonePayments(ctx, project.ID, job.TotalPaymentLamports); err != nil {
		return nil, err
	}

	staking, err := s.stakingRepo.GetByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("load staking: %w", err)
	}
	milestones, err := s.milestoneRepo.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("load milestones: %w", err)
	}

	corr := computeCorrections(mirrorState{
		project:              *project,
		staking:              *staking,
		milestones:           milestones,
		totalPaymentLamports: job.TotalPaymentLamports,
	}, chain, s.policy)

	if corr.empty() {
		return &SyncResult{Status: SyncStatusSynced}, nil
	}

	// All queued corrections land atomically or not at all.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if corr.setStakingTotals {
		if err := s.stakingRepo.WithTx(tx).SetTotals(ctx, project.ID, corr.stakedLamports, corr.releasedLamports); err != nil {
			return nil, fmt.Errorf("apply staking correction: %w", err)
		}
	}
	msRepo := s.milestoneRepo.WithTx(tx)
	for _, mc := range corr.milestones {
		if err := msRepo.ApplyCorrection(ctx, mc.id, mc.status, mc.paymentLamports, mc.paymentReleased); err != nil {
			return nil, fmt.Errorf("apply milestone %d correction: %w", mc.stage, err)
		}
	}
	if corr.completeProject {
		if err := s.projectRepo.WithTx(tx).UpdateStatus(ctx, project.ID, models.ProjectStatusCompleted); err != nil {
			return nil, fmt.Errorf("complete project: %w", err)
		}
		if err := s.jobRepo.WithTx(tx).UpdateStatus(ctx, job.ID, models.JobStatusCompleted); err != nil {
			return nil, fmt.Errorf("complete job: %w", err)
		}
	}

	if err := s.auditRepo.WithTx(tx).Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "mirror_corrected",
		EntityType: "project",
		EntityID:   &project.ID,
		Meta:       map[string]any{"job_id": job.ID.String(), "updates": corr.audits},
	}); err != nil {
		return nil, fmt.Errorf("write audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.log.Info("mirror corrected",
		zap.String("job_id", job.ID.String()),
		zap.Strings("updates", corr.audits),
	)
	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type: events.EventMirrorCorrected,
		Payload: map[string]any{
			"job_id":  job.ID.String(),
			"updates": corr.audits,
		},
	})

	return &SyncResult{Status: SyncStatusOutdated, UpdatesApplied: corr.audits}, nil
}

// FixMilestonePayments runs the self-heal step in isolation: evenly
// distributes the job total when every mirrored milestone amount is zero.
func (s *ReconcileService) FixMilestonePayments(ctx context.Context, jobID uuid.UUID) (bool, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("job not found: %w", err)
	}
	project, err := s.projectRepo.GetByJobID(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("%w: job has no mirrored project", models.ErrInvalidInput)
	}

	unlock := s.locker.Lock(project.ID)
	defer unlock()

	return s.fixMilestonePayments(ctx, project.ID, job.TotalPaymentLamports)
}

func (s *ReconcileService) fixMilestonePayments(ctx context.Context, projectID uuid.UUID, totalLamports int64) (bool, error) {
	milestones, err := s.milestoneRepo.ListByProject(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("load milestones: %w", err)
	}
	amounts := healMilestonePayments(milestones, totalLamports)
	if amounts == nil {
		return false, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	msRepo := s.milestoneRepo.WithTx(tx)
	for i, m := range milestones {
		if err := msRepo.UpdatePayment(ctx, m.ID, amounts[i]); err != nil {
			return false, fmt.Errorf("heal milestone %d: %w", m.StageNumber, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	s.log.Info("milestone payments healed",
		zap.String("project_id", projectID.String()),
		zap.Int64("total_lamports", totalLamports),
	)
	return true, nil
}

// SyncAll reconciles every eligible project; used by the periodic worker.
// Failures are per-job and do not abort the pass.
func (s *ReconcileService) SyncAll(ctx context.Context, parallelism int) {
	targets, err := s.projectRepo.ListReconcileTargets(ctx, s.allowCompleted)
	if err != nil {
		s.log.Error("list reconcile targets failed", zap.Error(err))
		return
	}
	if parallelism <= 0 {
		parallelism = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, t := range targets {
		jobID := t.JobID
		g.Go(func() error {
			res, err := s.SyncJob(ctx, jobID)
			if err != nil {
				s.log.Warn("reconcile failed", zap.String("job_id", jobID.String()), zap.Error(err))
				return nil
			}
			if res.Status == SyncStatusOutdated {
				s.log.Info("reconcile applied corrections",
					zap.String("job_id", jobID.String()),
					zap.Int("count", len(res.UpdatesApplied)),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}
