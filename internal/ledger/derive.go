package ledger

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/worklance/backend/internal/models"
)

// EscrowProgramID is the externally deployed settlement program. The escrow
// account for a job is a PDA owned by this program.
var EscrowProgramID = solana.MustPublicKeyFromBase58("BZicjRE3jR6YVWYof7pGSFwqJpJVEBZkY7xzfUimrjhm")

// MaxJobIDLen matches the on-chain limit for the job identifier seed.
const MaxJobIDLen = 50

var escrowSeedTag = []byte("escrow")

// DeriveEscrowAddress maps (payer, jobID) to the deterministic escrow account
// address and its bump. The job identifier is hashed to a fixed 32 bytes so
// the seed always fits Solana's seed length limit regardless of the id length.
// Pure function, no I/O.
func DeriveEscrowAddress(payer solana.PublicKey, jobID string) (solana.PublicKey, uint8, error) {
	if jobID == "" || len(jobID) > MaxJobIDLen {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: job id must be 1..%d characters", models.ErrInvalidInput, MaxJobIDLen)
	}
	jobHash := sha256.Sum256([]byte(jobID))
	addr, bump, err := solana.FindProgramAddress(
		[][]byte{escrowSeedTag, payer.Bytes(), jobHash[:]},
		EscrowProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive escrow address: %w", err)
	}
	return addr, bump, nil
}
