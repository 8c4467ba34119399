// Package session implements C5: challenge-nonce issuance and session
// token issuance/validation. Nonce state lives in the shared cache so any
// API replica can consume a nonce issued by another; tokens are
// golang-jwt/jwt/v4, pinned the same way bitkub-chain-bkc's example pins
// it, since the teacher has no auth-token concept of its own.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/evoting/core/internal/cache"
	"github.com/golang-jwt/jwt/v4"
)

// Purpose distinguishes what a nonce or session token is for.
type Purpose string

const (
	PurposeVote  Purpose = "vote"
	PurposeLogin Purpose = "login"
)

const nonceTTL = 5 * time.Minute

var (
	// ErrNonceNotFound is returned when a nonce was never issued, already
	// consumed, or expired.
	ErrNonceNotFound = errors.New("session: nonce not found or already used")
	// ErrTokenInvalid wraps any session-token verification failure.
	ErrTokenInvalid = errors.New("session: invalid token")
)

// Nonces issues and consumes challenge nonces backed by the shared cache.
type Nonces struct {
	cache *cache.Store
}

// NewNonces builds a Nonces issuer over store.
func NewNonces(store *cache.Store) *Nonces {
	return &Nonces{cache: store}
}

// Issue generates a 128-bit nonce bound to deviceId and purpose, storing it
// with a short TTL (spec.md §4.5 step 1).
func (n *Nonces) Issue(ctx context.Context, deviceID string, purpose Purpose) (nonce string, expiresAt time.Time, err error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("session: generate nonce: %w", err)
	}
	nonce = hex.EncodeToString(raw)
	expiresAt = time.Now().Add(nonceTTL)

	key := nonceKey(deviceID, string(purpose), nonce)
	if err := n.cache.Set(ctx, key, "1", nonceTTL); err != nil {
		return "", time.Time{}, err
	}
	return nonce, expiresAt, nil
}

// Consume atomically checks-and-deletes a nonce, returning
// ErrNonceNotFound if it was never issued or already used (spec.md §4.5
// step 3 / §5's "compare-and-delete").
func (n *Nonces) Consume(ctx context.Context, deviceID string, purpose Purpose, nonce string) error {
	key := nonceKey(deviceID, string(purpose), nonce)
	_, found, err := n.cache.GetAndDelete(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return ErrNonceNotFound
	}
	return nil
}

func nonceKey(deviceID, purpose, nonce string) string {
	return fmt.Sprintf("nonce:%s:%s:%s", purpose, deviceID, nonce)
}

// Claims is the session token payload. It deliberately carries no
// demographic or region data — eligibility is always re-evaluated from the
// persistent user record (spec.md §4.5).
type Claims struct {
	jwt.RegisteredClaims
	UserID              string `json:"userId"`
	PNHash              string `json:"pnHash"`
	DeviceKeyThumbprint string `json:"deviceKeyThumbprint"`
}

// Tokens issues and validates session JWTs.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens builds a Tokens issuer keyed with secret.
func NewTokens(secret []byte, ttl time.Duration) *Tokens {
	return &Tokens{secret: secret, ttl: ttl}
}

// Issue produces a signed session token for a freshly authenticated user.
func (t *Tokens) Issue(userID, pnHash, deviceThumbprint string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		UserID:              userID,
		PNHash:              pnHash,
		DeviceKeyThumbprint: deviceThumbprint,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (t *Tokens) Verify(tokenString string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("session: unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}
