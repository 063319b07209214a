package services

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/worklance/backend/internal/ledger"
	"github.com/worklance/backend/internal/models"
)

func TestCheckFundingClaim(t *testing.T) {
	payer := solana.MustPublicKeyFromBase58("CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK")
	derived, _, err := ledger.DeriveEscrowAddress(payer, "job-001")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	other, _, err := ledger.DeriveEscrowAddress(payer, "job-002")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	const jobTotal = 1_500_000_000

	tests := []struct {
		name    string
		addr    string
		total   int64
		wantErr bool
	}{
		{"matching address", derived.String(), 0, false},
		{"matching address and total", derived.String(), jobTotal, false},
		{"missing address", "", 0, true},
		{"wrong escrow address", other.String(), 0, true},
		{"not even an address", "not-an-address", 0, true},
		{"total mismatch", derived.String(), jobTotal - 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkFundingClaim(tt.addr, derived, tt.total, jobTotal)
			if tt.wantErr {
				if !errors.Is(err, models.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("expected claim to pass, got %v", err)
			}
		})
	}
}
