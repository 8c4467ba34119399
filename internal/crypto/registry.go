package crypto

import "fmt"

// Registry selects the active Hasher implementation by name, so switching
// CRYPTO_HASHER requires no call-site changes anywhere else in the system.
type Registry struct {
	active Hasher
}

// NewRegistry builds a Registry keyed with key, selecting the implementation
// named by algo ("hmac" or "poseidon"). Unknown algorithms fall back to hmac.
func NewRegistry(algo string, key []byte) *Registry {
	var h Hasher
	switch algo {
	case "poseidon":
		h = NewPoseidonHasher(key)
	default:
		h = NewHMACHasher(key)
	}
	return &Registry{active: h}
}

// Active returns the configured Hasher.
func (r *Registry) Active() Hasher { return r.active }

// WithKey derives a new Registry using the same algorithm but a different
// key — used when a component needs a distinctly-salted hasher (e.g. the
// device-hash salt vs the personal-number salt) without re-parsing config.
func (r *Registry) WithKey(key []byte) *Registry {
	switch r.active.Name() {
	case "poseidon":
		return &Registry{active: NewPoseidonHasher(key)}
	default:
		return &Registry{active: NewHMACHasher(key)}
	}
}

// MustHasher returns NewRegistry(algo, key).Active(), panicking on an empty key.
func MustHasher(algo string, key []byte) Hasher {
	if len(key) == 0 {
		panic(fmt.Sprintf("crypto: empty key for hasher %q", algo))
	}
	return NewRegistry(algo, key).Active()
}
