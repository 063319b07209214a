package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const nonceTTL = 5 * time.Minute

// NonceStore issues and consumes one-time sign-in nonces through redis.
// A nonce survives for nonceTTL and exactly one verification attempt.
type NonceStore struct {
	rdb *redis.Client
}

func NewNonceStore(rdb *redis.Client) *NonceStore {
	return &NonceStore{rdb: rdb}
}

func (s *NonceStore) Issue(ctx context.Context) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(buf)

	if err := s.rdb.Set(ctx, "auth:nonce:"+nonce, "1", nonceTTL).Err(); err != nil {
		return "", fmt.Errorf("store nonce: %w", err)
	}
	return nonce, nil
}

// Consume deletes the nonce; returns an error when it was never issued or
// was already used.
func (s *NonceStore) Consume(ctx context.Context, nonce string) error {
	if nonce == "" {
		return fmt.Errorf("nonce is required")
	}
	deleted, err := s.rdb.Del(ctx, "auth:nonce:"+nonce).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("invalid or expired nonce")
	}
	return nil
}
