package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/worklance/backend/internal/models"
)

// Authorizer is the capability a caller attaches to a ledger operation.
// Write operations require a signing capability; read-only paths pass a
// ReadOnly authorizer whose Sign always fails with ErrSignerUnavailable,
// so the two are distinguishable both statically and at runtime.
type Authorizer interface {
	PublicKey() solana.PublicKey
	Sign(msg []byte) (solana.Signature, error)
}

// WalletAuthorizer signs with a held private key (platform authority,
// custodial flows, tests).
type WalletAuthorizer struct {
	key solana.PrivateKey
}

func NewWalletAuthorizer(key solana.PrivateKey) *WalletAuthorizer {
	return &WalletAuthorizer{key: key}
}

func WalletAuthorizerFromBase58(secret string) (*WalletAuthorizer, error) {
	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, fmt.Errorf("parse wallet secret: %w", err)
	}
	return &WalletAuthorizer{key: key}, nil
}

func (w *WalletAuthorizer) PublicKey() solana.PublicKey { return w.key.PublicKey() }

func (w *WalletAuthorizer) Sign(msg []byte) (solana.Signature, error) {
	return w.key.Sign(msg)
}

type readOnly struct {
	pub solana.PublicKey
}

// ReadOnly wraps a public key as a non-signing authorizer.
func ReadOnly(pub solana.PublicKey) Authorizer { return readOnly{pub: pub} }

func (r readOnly) PublicKey() solana.PublicKey { return r.pub }

func (r readOnly) Sign([]byte) (solana.Signature, error) {
	return solana.Signature{}, models.ErrSignerUnavailable
}
