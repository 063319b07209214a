package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/worklance/backend/internal/models"
)

const (
	// feeBufferLamports is headroom required on top of the locked sum for
	// transaction fees and the escrow account's rent exemption.
	feeBufferLamports = 10_000_000
	// rentToleranceLamports absorbs the rent-exempt portion of the escrow
	// balance when verifying a freshly funded account.
	rentToleranceLamports = 3_000_000

	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond

	confirmAttempts = 30
	confirmDelay    = time.Second
)

// rpcAPI is the slice of the Solana JSON-RPC surface the client uses.
// *rpc.Client satisfies it; tests substitute a stub.
type rpcAPI interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Client executes and reads escrow operations against the settlement program.
// It never touches the mirror store: mirror updates happen only after a
// caller sees a confirmed result, so an abandoned or failed signing leaves
// no trace.
type Client struct {
	api        rpcAPI
	programID  solana.PublicKey
	maxRetries int
	retryDelay time.Duration
	log        *zap.Logger
}

func NewClient(rpcURL string, log *zap.Logger) *Client {
	return &Client{
		api:        rpc.New(rpcURL),
		programID:  EscrowProgramID,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		log:        log,
	}
}

// FundResult reports a confirmed escrow creation.
type FundResult struct {
	Address   solana.PublicKey
	Bump      uint8
	Signature solana.Signature
}

// VerifyResult is the read-only funding check.
type VerifyResult struct {
	Verified        bool
	BalanceLamports uint64
	Milestones      []MilestoneStatus
}

// withRetry runs fn with bounded retries and exponential backoff. Transient
// RPC failures surface as ErrLedgerUnreachable once retries are exhausted;
// rpc.ErrNotFound and domain errors pass through untouched.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := c.retryDelay
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, rpc.ErrNotFound) || errors.Is(err, context.Canceled) {
			return err
		}
		c.log.Warn("ledger call failed",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return fmt.Errorf("%w: %s: %v", models.ErrLedgerUnreachable, op, err)
}

// fetchEscrow reads and decodes the escrow account for (payer, jobID).
// Returns ErrEscrowNotFound when the account does not exist.
func (c *Client) fetchEscrow(ctx context.Context, payer solana.PublicKey, jobID string) (solana.PublicKey, *EscrowAccount, uint64, error) {
	addr, _, err := DeriveEscrowAddress(payer, jobID)
	if err != nil {
		return solana.PublicKey{}, nil, 0, err
	}

	var res *rpc.GetAccountInfoResult
	err = c.withRetry(ctx, "getAccountInfo", func() error {
		var inner error
		res, inner = c.api.GetAccountInfo(ctx, addr)
		return inner
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return addr, nil, 0, fmt.Errorf("%w: %s", models.ErrEscrowNotFound, addr)
		}
		return addr, nil, 0, err
	}
	if res == nil || res.Value == nil {
		return addr, nil, 0, fmt.Errorf("%w: %s", models.ErrEscrowNotFound, addr)
	}

	escrow, err := decodeEscrowAccount(res.Value.Data.GetBinary())
	if err != nil {
		return addr, nil, 0, fmt.Errorf("decode escrow %s: %w", addr, err)
	}
	return addr, escrow, res.Value.Lamports, nil
}

// signAndSend builds a single-instruction transaction, signs it through the
// authorizer and waits for confirmation. A declined signer aborts before
// anything reaches the network.
func (c *Client) signAndSend(ctx context.Context, auth Authorizer, ix solana.Instruction) (solana.Signature, error) {
	var bh *rpc.GetLatestBlockhashResult
	err := c.withRetry(ctx, "getLatestBlockhash", func() error {
		var inner error
		bh, inner = c.api.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		return inner
	})
	if err != nil {
		return solana.Signature{}, err
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		bh.Value.Blockhash,
		solana.TransactionPayer(auth.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("marshal message: %w", err)
	}
	sig, err := auth.Sign(msg)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}
	tx.Signatures = []solana.Signature{sig}

	var sent solana.Signature
	err = c.withRetry(ctx, "sendTransaction", func() error {
		var inner error
		sent, inner = c.api.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		return inner
	})
	if err != nil {
		return solana.Signature{}, err
	}

	if err := c.confirm(ctx, sent); err != nil {
		return solana.Signature{}, err
	}
	return sent, nil
}

func (c *Client) confirm(ctx context.Context, sig solana.Signature) error {
	for i := 0; i < confirmAttempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmDelay):
		}

		res, err := c.api.GetSignatureStatuses(ctx, false, sig)
		if err != nil || res == nil || len(res.Value) == 0 || res.Value[0] == nil {
			continue
		}
		st := res.Value[0]
		if st.Err != nil {
			return fmt.Errorf("transaction %s failed on ledger: %v", sig, st.Err)
		}
		if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			return nil
		}
	}
	return fmt.Errorf("%w: transaction %s not confirmed", models.ErrLedgerUnreachable, sig)
}

// Fund creates the escrow account and locks the full sum in one atomic
// ledger transaction. There is no partial-funding mode. After confirmation
// the account is re-read and verified; a missing account or short balance
// fails loudly.
func (c *Client) Fund(ctx context.Context, payer Authorizer, jobID string, payee solana.PublicKey, amounts [models.MilestoneCount]uint64) (*FundResult, error) {
	addr, bump, err := DeriveEscrowAddress(payer.PublicKey(), jobID)
	if err != nil {
		return nil, err
	}
	var total uint64
	for i, a := range amounts {
		if a == 0 {
			return nil, fmt.Errorf("%w: milestone %d amount must be > 0", models.ErrInvalidInput, i)
		}
		total += a
	}

	var bal *rpc.GetBalanceResult
	err = c.withRetry(ctx, "getBalance", func() error {
		var inner error
		bal, inner = c.api.GetBalance(ctx, payer.PublicKey(), rpc.CommitmentFinalized)
		return inner
	})
	if err != nil {
		return nil, err
	}
	if bal.Value < total+feeBufferLamports {
		return nil, fmt.Errorf("%w: have %d lamports, need %d plus fee buffer",
			models.ErrInsufficientBalance, bal.Value, total)
	}

	ix := solana.NewInstruction(c.programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(addr, true, false),
			solana.NewAccountMeta(payer.PublicKey(), true, true),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		encodeCreateJobEscrow(jobID, payee, amounts),
	)

	sig, err := c.signAndSend(ctx, payer, ix)
	if err != nil {
		return nil, err
	}

	// Postcondition: the account must exist and hold at least the locked sum
	// (less the rent-exempt tolerance).
	_, _, lamports, err := c.fetchEscrow(ctx, payer.PublicKey(), jobID)
	if err != nil {
		return nil, fmt.Errorf("funding confirmed but escrow unreadable: %w", err)
	}
	if lamports+rentToleranceLamports < total {
		return nil, fmt.Errorf("funding confirmed but escrow balance %d below locked sum %d", lamports, total)
	}

	c.log.Info("escrow funded",
		zap.String("job_id", jobID),
		zap.String("escrow", addr.String()),
		zap.Uint64("total_lamports", total),
		zap.String("signature", sig.String()),
	)
	return &FundResult{Address: addr, Bump: bump, Signature: sig}, nil
}

// Approve flips the approval flag for one milestone.
func (c *Client) Approve(ctx context.Context, payer Authorizer, jobID string, index int) (solana.Signature, error) {
	if index < 0 || index >= models.MilestoneCount {
		return solana.Signature{}, fmt.Errorf("%w: milestone index %d out of range", models.ErrInvalidInput, index)
	}
	addr, escrow, _, err := c.fetchEscrow(ctx, payer.PublicKey(), jobID)
	if err != nil {
		return solana.Signature{}, err
	}
	if escrow.Approved[index] {
		return solana.Signature{}, fmt.Errorf("%w: index %d", models.ErrMilestoneAlreadyApproved, index)
	}

	ix := solana.NewInstruction(c.programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(addr, true, false),
			solana.NewAccountMeta(payer.PublicKey(), false, true),
		},
		encodeMilestoneIx(ixApproveMilestone, uint8(index)),
	)
	return c.signAndSend(ctx, payer, ix)
}

// Claim transfers an approved milestone's locked amount to the payee.
func (c *Client) Claim(ctx context.Context, payee Authorizer, jobID string, payer solana.PublicKey, index int) (solana.Signature, error) {
	if index < 0 || index >= models.MilestoneCount {
		return solana.Signature{}, fmt.Errorf("%w: milestone index %d out of range", models.ErrInvalidInput, index)
	}
	addr, escrow, _, err := c.fetchEscrow(ctx, payer, jobID)
	if err != nil {
		return solana.Signature{}, err
	}
	if !escrow.Approved[index] {
		return solana.Signature{}, fmt.Errorf("%w: index %d", models.ErrMilestoneNotApproved, index)
	}
	if escrow.Claimed[index] {
		return solana.Signature{}, fmt.Errorf("%w: index %d", models.ErrMilestoneAlreadyClaimed, index)
	}

	ix := solana.NewInstruction(c.programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(addr, true, false),
			solana.NewAccountMeta(payee.PublicKey(), true, true),
		},
		encodeMilestoneIx(ixClaimMilestone, uint8(index)),
	)
	return c.signAndSend(ctx, payee, ix)
}

// Cancel refunds the unclaimed balance to the payer and closes the escrow.
// Refused once any milestone has ever been approved.
func (c *Client) Cancel(ctx context.Context, payer Authorizer, jobID string) (solana.Signature, error) {
	addr, escrow, _, err := c.fetchEscrow(ctx, payer.PublicKey(), jobID)
	if err != nil {
		return solana.Signature{}, err
	}
	if escrow.AnyApproved() {
		return solana.Signature{}, models.ErrCannotCancelAfterApproval
	}

	ix := solana.NewInstruction(c.programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(addr, true, false),
			solana.NewAccountMeta(payer.PublicKey(), true, true),
		},
		ixCancelJob[:],
	)
	return c.signAndSend(ctx, payer, ix)
}

// VerifyFunding is the read-only funding check. Verified is true iff the
// escrow balance covers the locked milestone sum and, when expectedTotal is
// non-zero, at least that amount as well.
func (c *Client) VerifyFunding(ctx context.Context, payer solana.PublicKey, jobID string, expectedTotal uint64) (*VerifyResult, error) {
	_, escrow, lamports, err := c.fetchEscrow(ctx, payer, jobID)
	if err != nil {
		return nil, err
	}
	verified := lamports+rentToleranceLamports >= escrow.TotalLocked()
	if expectedTotal > 0 && lamports+rentToleranceLamports < expectedTotal {
		verified = false
	}
	return &VerifyResult{
		Verified:        verified,
		BalanceLamports: lamports,
		Milestones:      escrow.Statuses(),
	}, nil
}

// Status returns the read-only per-milestone projection.
func (c *Client) Status(ctx context.Context, payer solana.PublicKey, jobID string) ([]MilestoneStatus, error) {
	_, escrow, _, err := c.fetchEscrow(ctx, payer, jobID)
	if err != nil {
		return nil, err
	}
	return escrow.Statuses(), nil
}

// PlatformWithdraw moves lamports from an escrow to the platform authority
// (fees, dispute resolution). Authority-only on chain.
func (c *Client) PlatformWithdraw(ctx context.Context, authority Authorizer, payer solana.PublicKey, jobID string, lamports uint64) (solana.Signature, error) {
	addr, _, balance, err := c.fetchEscrow(ctx, payer, jobID)
	if err != nil {
		return solana.Signature{}, err
	}
	if lamports == 0 || lamports > balance {
		return solana.Signature{}, fmt.Errorf("%w: withdraw %d exceeds escrow balance %d",
			models.ErrInsufficientBalance, lamports, balance)
	}

	ix := solana.NewInstruction(c.programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(addr, true, false),
			solana.NewAccountMeta(authority.PublicKey(), true, true),
		},
		encodeLamportsIx(ixPlatformWithdraw, lamports),
	)
	return c.signAndSend(ctx, authority, ix)
}

// PlatformEmergencyClose drains and closes an escrow to the platform
// authority.
func (c *Client) PlatformEmergencyClose(ctx context.Context, authority Authorizer, payer solana.PublicKey, jobID string) (solana.Signature, error) {
	addr, _, _, err := c.fetchEscrow(ctx, payer, jobID)
	if err != nil {
		return solana.Signature{}, err
	}

	ix := solana.NewInstruction(c.programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(addr, true, false),
			solana.NewAccountMeta(authority.PublicKey(), true, true),
		},
		ixPlatformEmergencyClose[:],
	)
	return c.signAndSend(ctx, authority, ix)
}
