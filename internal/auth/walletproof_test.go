package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

func signedProof(t *testing.T, wallet *solana.Wallet, timestamp int64, nonce string) WalletProof {
	t.Helper()
	msg := ProofMessage(wallet.PublicKey(), timestamp, nonce)
	sig, err := wallet.PrivateKey.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return WalletProof{
		Wallet:    wallet.PublicKey().String(),
		Timestamp: timestamp,
		Nonce:     nonce,
		Signature: base64.StdEncoding.EncodeToString(sig[:]),
	}
}

func TestVerifyWalletProof_Valid(t *testing.T) {
	wallet := solana.NewWallet()
	proof := signedProof(t, wallet, time.Now().Unix(), "nonce-123")

	pub, err := VerifyWalletProof(proof)
	if err != nil {
		t.Fatalf("expected valid proof, got: %v", err)
	}
	if pub != wallet.PublicKey() {
		t.Errorf("recovered wallet %s, want %s", pub, wallet.PublicKey())
	}
}

func TestVerifyWalletProof_Expired(t *testing.T) {
	wallet := solana.NewWallet()
	proof := signedProof(t, wallet, time.Now().Add(-10*time.Minute).Unix(), "nonce-123")

	if _, err := VerifyWalletProof(proof); err == nil {
		t.Error("expected expired proof to be rejected")
	}
}

func TestVerifyWalletProof_FutureTimestamp(t *testing.T) {
	wallet := solana.NewWallet()
	proof := signedProof(t, wallet, time.Now().Add(10*time.Minute).Unix(), "nonce-123")

	if _, err := VerifyWalletProof(proof); err == nil {
		t.Error("expected future-dated proof to be rejected")
	}
}

func TestVerifyWalletProof_TamperedNonce(t *testing.T) {
	wallet := solana.NewWallet()
	proof := signedProof(t, wallet, time.Now().Unix(), "nonce-123")
	proof.Nonce = "nonce-456"

	if _, err := VerifyWalletProof(proof); err == nil {
		t.Error("expected tampered nonce to invalidate the signature")
	}
}

func TestVerifyWalletProof_WrongWallet(t *testing.T) {
	wallet := solana.NewWallet()
	proof := signedProof(t, wallet, time.Now().Unix(), "nonce-123")
	proof.Wallet = solana.NewWallet().PublicKey().String()

	if _, err := VerifyWalletProof(proof); err == nil {
		t.Error("expected signature from a different wallet to be rejected")
	}
}

func TestVerifyWalletProof_MalformedFields(t *testing.T) {
	wallet := solana.NewWallet()
	base := signedProof(t, wallet, time.Now().Unix(), "nonce-123")

	badWallet := base
	badWallet.Wallet = "not-base58-!!!"
	if _, err := VerifyWalletProof(badWallet); err == nil {
		t.Error("expected invalid wallet encoding to be rejected")
	}

	badSig := base
	badSig.Signature = "not-base64-!!!"
	if _, err := VerifyWalletProof(badSig); err == nil {
		t.Error("expected invalid signature encoding to be rejected")
	}

	shortSig := base
	shortSig.Signature = base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := VerifyWalletProof(shortSig); err == nil {
		t.Error("expected short signature to be rejected")
	}
}
