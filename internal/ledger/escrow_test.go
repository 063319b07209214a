package ledger

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/worklance/backend/internal/models"
)

func encodeEscrowFixture(payer, payee solana.PublicKey, jobID string, amounts [3]uint64, approved, claimed [3]bool, bump uint8) []byte {
	data := append([]byte{}, escrowAccountDiscriminator[:]...)
	data = append(data, payer.Bytes()...)
	data = append(data, payee.Bytes()...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(jobID)))
	data = append(data, jobID...)
	for _, a := range amounts {
		data = binary.LittleEndian.AppendUint64(data, a)
	}
	for _, b := range approved {
		if b {
			data = append(data, 1)
		} else {
			data = append(data, 0)
		}
	}
	for _, b := range claimed {
		if b {
			data = append(data, 1)
		} else {
			data = append(data, 0)
		}
	}
	return append(data, bump)
}

func TestDecodeEscrowAccount(t *testing.T) {
	payer := solana.MustPublicKeyFromBase58("CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK")
	payee := solana.MustPublicKeyFromBase58("BZicjRE3jR6YVWYof7pGSFwqJpJVEBZkY7xzfUimrjhm")
	amounts := [3]uint64{500_000_000, 300_000_000, 200_000_000}

	data := encodeEscrowFixture(payer, payee, "job-001", amounts, [3]bool{true, false, false}, [3]bool{true, false, false}, 254)

	e, err := decodeEscrowAccount(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Payer != payer {
		t.Errorf("payer = %s, want %s", e.Payer, payer)
	}
	if e.Payee != payee {
		t.Errorf("payee = %s, want %s", e.Payee, payee)
	}
	if e.JobID != "job-001" {
		t.Errorf("job id = %q, want %q", e.JobID, "job-001")
	}
	if e.MilestoneAmounts != amounts {
		t.Errorf("amounts = %v, want %v", e.MilestoneAmounts, amounts)
	}
	if !e.Approved[0] || e.Approved[1] || e.Approved[2] {
		t.Errorf("approved = %v, want [true false false]", e.Approved)
	}
	if !e.Claimed[0] || e.Claimed[1] || e.Claimed[2] {
		t.Errorf("claimed = %v, want [true false false]", e.Claimed)
	}
	if e.Bump != 254 {
		t.Errorf("bump = %d, want 254", e.Bump)
	}
	if e.TotalLocked() != 1_000_000_000 {
		t.Errorf("total locked = %d, want 1000000000", e.TotalLocked())
	}
	if !e.AnyApproved() {
		t.Error("expected AnyApproved to be true")
	}
}

func TestDecodeEscrowAccount_Rejections(t *testing.T) {
	payer := solana.MustPublicKeyFromBase58("CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK")
	good := encodeEscrowFixture(payer, payer, "job-001", [3]uint64{1, 2, 3}, [3]bool{}, [3]bool{}, 255)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", good[:4]},
		{"bad discriminator", append([]byte{0, 0, 0, 0, 0, 0, 0, 0}, good[8:]...)},
		{"truncated body", good[:60]},
		{"truncated amounts", good[:len(good)-10]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeEscrowAccount(tt.data); err == nil {
				t.Error("expected decode error")
			}
		})
	}

	// Job id length pointing past the buffer
	bad := append([]byte{}, good...)
	binary.LittleEndian.PutUint32(bad[8+64:], 1000)
	if _, err := decodeEscrowAccount(bad); err == nil {
		t.Error("expected decode error for oversized job id length")
	}
}

func TestStatuses_Precedence(t *testing.T) {
	payer := solana.MustPublicKeyFromBase58("CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK")
	data := encodeEscrowFixture(payer, payer, "job-001",
		[3]uint64{100, 200, 300},
		[3]bool{true, true, false},
		[3]bool{true, false, false},
		255,
	)
	e, err := decodeEscrowAccount(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := e.Statuses()
	if len(statuses) != models.MilestoneCount {
		t.Fatalf("expected %d statuses, got %d", models.MilestoneCount, len(statuses))
	}

	// claimed wins over approved
	if statuses[0].DerivedStatus != models.MilestoneStatusClaimed {
		t.Errorf("milestone 0 = %s, want claimed", statuses[0].DerivedStatus)
	}
	if statuses[1].DerivedStatus != models.MilestoneStatusApproved {
		t.Errorf("milestone 1 = %s, want approved", statuses[1].DerivedStatus)
	}
	if statuses[2].DerivedStatus != models.MilestoneStatusPending {
		t.Errorf("milestone 2 = %s, want pending", statuses[2].DerivedStatus)
	}
	for i, s := range statuses {
		if s.Index != i {
			t.Errorf("status %d has index %d", i, s.Index)
		}
	}
}

func TestEncodeCreateJobEscrow(t *testing.T) {
	payee := solana.MustPublicKeyFromBase58("CMvVjcRz1CfmbLJ2RRUsDBYXh4bRcWttpkNY7FREHLUK")
	data := encodeCreateJobEscrow("job-001", payee, [3]uint64{1, 2, 3})

	if len(data) != 8+4+7+32+24 {
		t.Fatalf("unexpected length %d", len(data))
	}
	if [8]byte(data[:8]) != ixCreateJobEscrow {
		t.Error("missing instruction discriminator")
	}
	if binary.LittleEndian.Uint32(data[8:]) != 7 {
		t.Error("wrong job id length prefix")
	}
	if string(data[12:19]) != "job-001" {
		t.Error("job id bytes not encoded")
	}
	if binary.LittleEndian.Uint64(data[len(data)-8:]) != 3 {
		t.Error("last amount not encoded little-endian")
	}
}

func TestEncodeMilestoneIx(t *testing.T) {
	data := encodeMilestoneIx(ixApproveMilestone, 2)
	if len(data) != 9 {
		t.Fatalf("unexpected length %d", len(data))
	}
	if [8]byte(data[:8]) != ixApproveMilestone || data[8] != 2 {
		t.Errorf("bad encoding: %v", data)
	}
}
