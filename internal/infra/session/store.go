// Package session stores opaque bearer sessions with a bounded lifetime.
// Tokens are generated here and handed to clients as HTTP-only cookies; the
// stores never see passwords or password hashes.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/HtFilia/trading-board/errs"
	"github.com/HtFilia/trading-board/internal/schema"
)

// KeyPrefix namespaces session keys in shared stores.
const KeyPrefix = "auth_session:"

// tokenBytes sizes the random token; 32 bytes gives 256 bits of entropy.
const tokenBytes = 32

// Store issues, resolves and revokes sessions.
type Store interface {
	// Issue creates a session for the user and returns it with a fresh token.
	Issue(ctx context.Context, userID string) (schema.Session, error)
	// Get resolves a token. Unknown and expired tokens are indistinguishable.
	Get(ctx context.Context, token string) (schema.Session, error)
	// Revoke invalidates a token. Revoking an unknown token is a no-op.
	Revoke(ctx context.Context, token string) error
}

// NewToken returns a hex-encoded random session token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func notFound(op string) error {
	return errs.New(op, errs.KindAuth, errs.WithMessage("session not found or expired"))
}
