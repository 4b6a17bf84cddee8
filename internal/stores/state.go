package stores

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"time"

	"golang.org/x/oauth2"
)

const stateTokenSize = 32 // 256 bits of entropy per state value

var (
	// ErrStateNotFound means the state value is unknown, already consumed,
	// or past its TTL. The three cases are deliberately indistinguishable.
	ErrStateNotFound = errors.New("state not found or expired")
	// ErrStateBackend means the backing store is unreachable.
	ErrStateBackend = errors.New("state backend unavailable")
)

// StateRecord is the payload bound to one state token.
type StateRecord struct {
	Verifier  string    `json:"verifier"`
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StateStore persists PKCE state between the initiate and complete calls of
// the external login flow.
type StateStore interface {
	// Save stores the record under state for the given TTL.
	Save(ctx context.Context, state string, record StateRecord, ttl time.Duration) error
	// Consume atomically removes and returns the record. It fails with
	// ErrStateNotFound for unknown, reused, or expired state values, and the
	// entry is gone afterwards regardless of outcome.
	Consume(ctx context.Context, state string) (StateRecord, error)
}

// NewStateToken returns a fresh URL-safe random state value read from r
// (crypto/rand when nil).
func NewStateToken(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, stateTokenSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewVerifier returns a fresh PKCE code verifier read from r (crypto/rand
// when nil) together with its S256 challenge.
func NewVerifier(r io.Reader) (verifier, challenge string, err error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, stateTokenSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", "", err
	}
	verifier = base64.RawURLEncoding.EncodeToString(b)
	return verifier, oauth2.S256ChallengeFromVerifier(verifier), nil
}
