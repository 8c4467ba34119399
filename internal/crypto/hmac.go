package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// hmacHasher is the default Hasher: HMAC-SHA256 over inputs joined with '|'.
type hmacHasher struct {
	key []byte
}

// NewHMACHasher builds a Hasher keyed with key. The key is typically one of
// the salts the Secrets Provider loads (pnSalt, deviceSalt, voterSalt).
func NewHMACHasher(key []byte) Hasher {
	return &hmacHasher{key: key}
}

func (h *hmacHasher) Name() string { return "hmac" }

func (h *hmacHasher) Hash(inputs ...string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(strings.Join(inputs, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *hmacHasher) Verify(expected string, inputs ...string) bool {
	got := h.Hash(inputs...)
	// Compare as raw bytes of equal length to avoid any length-driven timing
	// side channel from subtle.ConstantTimeCompare on mismatched lengths.
	if len(got) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
