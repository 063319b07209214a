package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/worklance/backend/internal/models"
)

// stubRPC satisfies rpcAPI with canned responses.
type stubRPC struct {
	accountData []byte
	accountBal  uint64
	accountErr  error
	balance     uint64
	balanceErr  error
}

func (s *stubRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	return &rpc.GetAccountInfoResult{
		Value: &rpc.Account{
			Lamports: s.accountBal,
			Data:     rpc.DataBytesOrJSONFromBytes(s.accountData),
		},
	}, nil
}

func (s *stubRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if s.balanceErr != nil {
		return nil, s.balanceErr
	}
	return &rpc.GetBalanceResult{Value: s.balance}, nil
}

func (s *stubRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{}},
	}, nil
}

func (s *stubRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func (s *stubRPC) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return &rpc.GetSignatureStatusesResult{
		Value: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusFinalized},
		},
	}, nil
}

func newTestClient(api rpcAPI) *Client {
	return &Client{
		api:        api,
		programID:  EscrowProgramID,
		maxRetries: 0,
		retryDelay: time.Millisecond,
		log:        zap.NewNop(),
	}
}

func escrowFixture(payer solana.PublicKey, amounts [3]uint64, approved, claimed [3]bool) []byte {
	return encodeEscrowFixture(payer, payer, "job-001", amounts, approved, claimed, 255)
}

func TestFund_RejectsZeroAmount(t *testing.T) {
	payer := NewWalletAuthorizer(solana.NewWallet().PrivateKey)
	c := newTestClient(&stubRPC{balance: 10_000_000_000})

	_, err := c.Fund(context.Background(), payer, "job-001", solana.NewWallet().PublicKey(), [3]uint64{1, 0, 3})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFund_RejectsInsufficientBalance(t *testing.T) {
	payer := NewWalletAuthorizer(solana.NewWallet().PrivateKey)
	// Balance covers the sum but not the fee buffer.
	c := newTestClient(&stubRPC{balance: 1_000_000_000})

	_, err := c.Fund(context.Background(), payer, "job-001", solana.NewWallet().PublicKey(), [3]uint64{500_000_000, 300_000_000, 200_000_000})
	if !errors.Is(err, models.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestFetchEscrow_NotFound(t *testing.T) {
	c := newTestClient(&stubRPC{accountErr: rpc.ErrNotFound})

	_, _, _, err := c.fetchEscrow(context.Background(), solana.NewWallet().PublicKey(), "job-001")
	if !errors.Is(err, models.ErrEscrowNotFound) {
		t.Errorf("expected ErrEscrowNotFound, got %v", err)
	}
}

func TestFetchEscrow_TransientFailure(t *testing.T) {
	c := newTestClient(&stubRPC{accountErr: errors.New("connection refused")})

	_, _, _, err := c.fetchEscrow(context.Background(), solana.NewWallet().PublicKey(), "job-001")
	if !errors.Is(err, models.ErrLedgerUnreachable) {
		t.Errorf("expected ErrLedgerUnreachable, got %v", err)
	}
}

func TestVerifyFunding(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	amounts := [3]uint64{500_000_000, 300_000_000, 200_000_000}
	data := escrowFixture(payer, amounts, [3]bool{}, [3]bool{})

	tests := []struct {
		name          string
		balance       uint64
		expectedTotal uint64
		verified      bool
	}{
		{"covers locked sum", 1_000_000_000, 0, true},
		{"rent tolerance absorbs shortfall", 1_000_000_000 - rentToleranceLamports, 0, true},
		{"short balance", 500_000_000, 0, false},
		{"expected total not met", 1_000_000_000, 2_000_000_000, false},
		{"expected total met", 1_000_000_000, 1_000_000_000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(&stubRPC{accountData: data, accountBal: tt.balance})
			res, err := c.VerifyFunding(context.Background(), payer, "job-001", tt.expectedTotal)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Verified != tt.verified {
				t.Errorf("verified = %v, want %v", res.Verified, tt.verified)
			}
			if len(res.Milestones) != models.MilestoneCount {
				t.Errorf("expected %d milestone statuses, got %d", models.MilestoneCount, len(res.Milestones))
			}
		})
	}
}

func TestApprove_PreflightAlreadyApproved(t *testing.T) {
	payer := NewWalletAuthorizer(solana.NewWallet().PrivateKey)
	data := escrowFixture(payer.PublicKey(), [3]uint64{1, 2, 3}, [3]bool{true, false, false}, [3]bool{})
	c := newTestClient(&stubRPC{accountData: data})

	if _, err := c.Approve(context.Background(), payer, "job-001", 0); !errors.Is(err, models.ErrMilestoneAlreadyApproved) {
		t.Errorf("expected ErrMilestoneAlreadyApproved, got %v", err)
	}
	if _, err := c.Approve(context.Background(), payer, "job-001", 5); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for out of range index, got %v", err)
	}
}

func TestClaim_Preflight(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	payee := NewWalletAuthorizer(solana.NewWallet().PrivateKey)
	data := escrowFixture(payer, [3]uint64{1, 2, 3}, [3]bool{true, false, false}, [3]bool{true, false, false})
	c := newTestClient(&stubRPC{accountData: data})

	if _, err := c.Claim(context.Background(), payee, "job-001", payer, 1); !errors.Is(err, models.ErrMilestoneNotApproved) {
		t.Errorf("expected ErrMilestoneNotApproved, got %v", err)
	}
	if _, err := c.Claim(context.Background(), payee, "job-001", payer, 0); !errors.Is(err, models.ErrMilestoneAlreadyClaimed) {
		t.Errorf("expected ErrMilestoneAlreadyClaimed, got %v", err)
	}
}

func TestCancel_RefusedAfterApproval(t *testing.T) {
	payer := NewWalletAuthorizer(solana.NewWallet().PrivateKey)
	data := escrowFixture(payer.PublicKey(), [3]uint64{1, 2, 3}, [3]bool{false, true, false}, [3]bool{})
	c := newTestClient(&stubRPC{accountData: data})

	if _, err := c.Cancel(context.Background(), payer, "job-001"); !errors.Is(err, models.ErrCannotCancelAfterApproval) {
		t.Errorf("expected ErrCannotCancelAfterApproval, got %v", err)
	}
}

func TestReadOnlyAuthorizer_CannotSign(t *testing.T) {
	auth := ReadOnly(solana.NewWallet().PublicKey())
	if _, err := auth.Sign([]byte("msg")); !errors.Is(err, models.ErrSignerUnavailable) {
		t.Errorf("expected ErrSignerUnavailable, got %v", err)
	}
}
