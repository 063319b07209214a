package ledger

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestDeriveEscrowAddress_GoldenVectors(t *testing.T) {
	tests := []struct {
		payer    string
		jobID    string
		expected string
		bump     uint8
	}{
		{"CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK", "job-001", "2mBTAq8FM8C5Tu5Wb4iCv9B1hVyN3yFCsHXbFPBDqrcs", 255},
		{"CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK", "job-002", "8kqxCGbHxfJF16VNjSYJp5H9i3anogxBbfkVRmYriySx", 255},
		{"CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK", "job-101", "9nxFDcRgYigezFntJnqi7ikPwWcHkD77aJyL43Mw3ktf", 255},
		{"CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK", "kob-001", "FPG72znqNEBpEnFqrLkGWGC5sV5EF2R2WrGi3FseKEJR", 254},
		{"BZicjRE3jR6YVWYof7pGSFwqJpJVEBZkY7xzfUimrjhm", "job-001", "HGgmPzg1SKLiyqc3jmVTYsfQsuBCJmrGWqXxni4Ryrw7", 254},
	}

	for _, tt := range tests {
		t.Run(tt.jobID+"@"+tt.payer[:8], func(t *testing.T) {
			payer := solana.MustPublicKeyFromBase58(tt.payer)
			addr, bump, err := DeriveEscrowAddress(payer, tt.jobID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if addr.String() != tt.expected {
				t.Errorf("address = %s, want %s", addr, tt.expected)
			}
			if bump != tt.bump {
				t.Errorf("bump = %d, want %d", bump, tt.bump)
			}
		})
	}
}

func TestDeriveEscrowAddress_Deterministic(t *testing.T) {
	payer := solana.MustPublicKeyFromBase58("CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK")

	first, bump1, err := DeriveEscrowAddress(payer, "job-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		addr, bump, err := DeriveEscrowAddress(payer, "job-001")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr != first || bump != bump1 {
			t.Fatalf("derivation is not deterministic: got %s/%d, want %s/%d", addr, bump, first, bump1)
		}
	}
}

func TestDeriveEscrowAddress_InputSensitivity(t *testing.T) {
	payer := solana.MustPublicKeyFromBase58("CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK")
	otherPayer := solana.MustPublicKeyFromBase58("BZicjRE3jR6YVWYof7pGSFwqJpJVEBZkY7xzfUimrjhm")

	base, _, err := DeriveEscrowAddress(payer, "job-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One character off in the job id
	if addr, _, _ := DeriveEscrowAddress(payer, "job-002"); addr == base {
		t.Error("different job ids must derive different addresses")
	}
	if addr, _, _ := DeriveEscrowAddress(payer, "kob-001"); addr == base {
		t.Error("different job ids must derive different addresses")
	}
	// Different payer
	if addr, _, _ := DeriveEscrowAddress(otherPayer, "job-001"); addr == base {
		t.Error("different payers must derive different addresses")
	}
}

func TestDeriveEscrowAddress_JobIDLimits(t *testing.T) {
	payer := solana.MustPublicKeyFromBase58("CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK")

	if _, _, err := DeriveEscrowAddress(payer, ""); err == nil {
		t.Error("empty job id must be rejected")
	}
	if _, _, err := DeriveEscrowAddress(payer, strings.Repeat("x", MaxJobIDLen+1)); err == nil {
		t.Error("job id over the limit must be rejected")
	}
	// Exactly at the limit is fine; long ids hash down to a fixed seed size.
	if _, _, err := DeriveEscrowAddress(payer, strings.Repeat("x", MaxJobIDLen)); err != nil {
		t.Errorf("job id at the limit must derive: %v", err)
	}
}
