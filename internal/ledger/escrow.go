package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/worklance/backend/internal/models"
)

// Anchor instruction discriminators: sha256("global:<name>")[:8].
var (
	ixCreateJobEscrow        = [8]byte{0x2a, 0xcc, 0xc2, 0x35, 0x7c, 0x71, 0xbd, 0xe6}
	ixApproveMilestone       = [8]byte{0x91, 0x55, 0x5c, 0x3c, 0x32, 0x82, 0xdb, 0x6a}
	ixClaimMilestone         = [8]byte{0xd3, 0x86, 0x98, 0x25, 0x03, 0x52, 0xd6, 0xbd}
	ixCancelJob              = [8]byte{0x7e, 0xf1, 0x9b, 0xf1, 0x32, 0xec, 0x53, 0x76}
	ixPlatformWithdraw       = [8]byte{0x02, 0x46, 0x62, 0x96, 0xf3, 0xc4, 0xf4, 0x52}
	ixPlatformEmergencyClose = [8]byte{0xa2, 0x06, 0x09, 0x2a, 0xc9, 0xcf, 0x1e, 0x2a}
)

// Account discriminator: sha256("account:Escrow")[:8].
var escrowAccountDiscriminator = [8]byte{0x1f, 0xd5, 0x7b, 0xbb, 0xba, 0x16, 0xda, 0x9b}

// EscrowAccount is the decoded on-chain escrow record. Immutable after
// creation except for the approval/claim flags, which only ever flip
// false -> true.
type EscrowAccount struct {
	Payer            solana.PublicKey
	Payee            solana.PublicKey
	JobID            string
	MilestoneAmounts [models.MilestoneCount]uint64
	Approved         [models.MilestoneCount]bool
	Claimed          [models.MilestoneCount]bool
	Bump             uint8
}

// TotalLocked returns the sum of all milestone amounts.
func (e *EscrowAccount) TotalLocked() uint64 {
	var sum uint64
	for _, a := range e.MilestoneAmounts {
		sum += a
	}
	return sum
}

// AnyApproved reports whether any milestone has ever been approved.
func (e *EscrowAccount) AnyApproved() bool {
	for _, a := range e.Approved {
		if a {
			return true
		}
	}
	return false
}

// MilestoneStatus is the read-only per-milestone projection returned by
// Status. DerivedStatus precedence: claimed > approved > pending.
type MilestoneStatus struct {
	Index          int    `json:"index"`
	AmountLamports uint64 `json:"amount_lamports"`
	Approved       bool   `json:"approved"`
	Claimed        bool   `json:"claimed"`
	DerivedStatus  string `json:"derived_status"`
}

func deriveMilestoneStatus(approved, claimed bool) string {
	switch {
	case claimed:
		return models.MilestoneStatusClaimed
	case approved:
		return models.MilestoneStatusApproved
	default:
		return models.MilestoneStatusPending
	}
}

func (e *EscrowAccount) Statuses() []MilestoneStatus {
	out := make([]MilestoneStatus, models.MilestoneCount)
	for i := 0; i < models.MilestoneCount; i++ {
		out[i] = MilestoneStatus{
			Index:          i,
			AmountLamports: e.MilestoneAmounts[i],
			Approved:       e.Approved[i],
			Claimed:        e.Claimed[i],
			DerivedStatus:  deriveMilestoneStatus(e.Approved[i], e.Claimed[i]),
		}
	}
	return out
}

// decodeEscrowAccount parses the borsh-encoded account data:
// discriminator(8) | payer(32) | payee(32) | job_id(4+len) |
// amounts(3*8) | approved(3) | claimed(3) | bump(1).
func decodeEscrowAccount(data []byte) (*EscrowAccount, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("escrow account data too short: %d bytes", len(data))
	}
	if [8]byte(data[:8]) != escrowAccountDiscriminator {
		return nil, fmt.Errorf("not an escrow account (discriminator mismatch)")
	}
	buf := data[8:]
	if len(buf) < 32+32+4 {
		return nil, fmt.Errorf("escrow account data truncated")
	}

	var e EscrowAccount
	e.Payer = solana.PublicKeyFromBytes(buf[:32])
	e.Payee = solana.PublicKeyFromBytes(buf[32:64])
	buf = buf[64:]

	idLen := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if idLen > MaxJobIDLen || int(idLen) > len(buf) {
		return nil, fmt.Errorf("invalid job id length %d", idLen)
	}
	e.JobID = string(buf[:idLen])
	buf = buf[idLen:]

	need := models.MilestoneCount*8 + models.MilestoneCount*2 + 1
	if len(buf) < need {
		return nil, fmt.Errorf("escrow account data truncated")
	}
	for i := 0; i < models.MilestoneCount; i++ {
		e.MilestoneAmounts[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	buf = buf[models.MilestoneCount*8:]
	for i := 0; i < models.MilestoneCount; i++ {
		e.Approved[i] = buf[i] != 0
	}
	buf = buf[models.MilestoneCount:]
	for i := 0; i < models.MilestoneCount; i++ {
		e.Claimed[i] = buf[i] != 0
	}
	e.Bump = buf[models.MilestoneCount]

	return &e, nil
}

// encodeCreateJobEscrow builds the instruction data for create_job_escrow:
// discriminator | job_id (u32 len + bytes) | payee(32) | amounts(3*u64).
func encodeCreateJobEscrow(jobID string, payee solana.PublicKey, amounts [models.MilestoneCount]uint64) []byte {
	data := make([]byte, 0, 8+4+len(jobID)+32+models.MilestoneCount*8)
	data = append(data, ixCreateJobEscrow[:]...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(jobID)))
	data = append(data, jobID...)
	data = append(data, payee.Bytes()...)
	for _, a := range amounts {
		data = binary.LittleEndian.AppendUint64(data, a)
	}
	return data
}

// encodeMilestoneIx builds instruction data carrying a single u8 milestone
// index (approve_milestone, claim_milestone).
func encodeMilestoneIx(disc [8]byte, index uint8) []byte {
	data := make([]byte, 0, 9)
	data = append(data, disc[:]...)
	return append(data, index)
}

// encodeLamportsIx builds instruction data carrying a single u64 amount
// (platform_withdraw).
func encodeLamportsIx(disc [8]byte, lamports uint64) []byte {
	data := make([]byte, 0, 16)
	data = append(data, disc[:]...)
	return binary.LittleEndian.AppendUint64(data, lamports)
}
