package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	// WalletProofPrefix is the fixed prefix the client signs. Keeping a
	// protocol prefix in the signed bytes prevents a login signature from
	// doubling as a valid ledger transaction.
	WalletProofPrefix = "worklance-wallet-proof-v1/"

	// MaxProofAge bounds replay of a captured proof.
	MaxProofAge = 5 * time.Minute
)

// WalletProof is the client's sign-in proof: the wallet signs
// prefix ++ wallet(32) ++ timestamp(8 LE) ++ nonce with its ed25519 key.
type WalletProof struct {
	Wallet    string `json:"wallet"` // base58 public key
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"` // base64
}

// ProofMessage builds the exact byte string the wallet must sign.
func ProofMessage(wallet solana.PublicKey, timestamp int64, nonce string) []byte {
	msg := make([]byte, 0, len(WalletProofPrefix)+32+8+len(nonce))
	msg = append(msg, WalletProofPrefix...)
	msg = append(msg, wallet.Bytes()...)
	msg = binary.LittleEndian.AppendUint64(msg, uint64(timestamp))
	return append(msg, nonce...)
}

// VerifyWalletProof checks the proof's freshness and signature. The nonce is
// consumed by the caller before verification is attempted.
func VerifyWalletProof(p WalletProof) (solana.PublicKey, error) {
	proofTime := time.Unix(p.Timestamp, 0)
	if time.Since(proofTime) > MaxProofAge {
		return solana.PublicKey{}, fmt.Errorf("proof expired: %s old", time.Since(proofTime).Round(time.Second))
	}
	if proofTime.After(time.Now().Add(1 * time.Minute)) {
		return solana.PublicKey{}, fmt.Errorf("proof timestamp is in the future")
	}

	wallet, err := solana.PublicKeyFromBase58(p.Wallet)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid wallet address: %w", err)
	}

	sig, err := base64.StdEncoding.DecodeString(p.Signature)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid signature base64: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return solana.PublicKey{}, fmt.Errorf("invalid signature size: %d", len(sig))
	}

	msg := ProofMessage(wallet, p.Timestamp, p.Nonce)
	if !ed25519.Verify(ed25519.PublicKey(wallet.Bytes()), msg, sig) {
		return solana.PublicKey{}, fmt.Errorf("invalid signature")
	}

	return wallet, nil
}
