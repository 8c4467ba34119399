// Package crypto is the Crypto Registry (spec.md §4.1): a pluggable keyed
// hasher selected by configuration, never by symbol loading, plus an
// optional zk nullifier-proof verifier that degrades gracefully when no
// verification key is configured.
package crypto

// Hasher produces a deterministic, keyed digest over an ordered list of
// inputs and can verify a claimed digest in constant time. Implementations
// must be safe for concurrent use.
type Hasher interface {
	// Hash returns the hex-encoded keyed digest of inputs joined in order.
	Hash(inputs ...string) string
	// Verify reports whether expected matches Hash(inputs...), using a
	// constant-time comparison so verification time leaks nothing about
	// where a mismatch occurred.
	Verify(expected string, inputs ...string) bool
	// Name identifies the algorithm, e.g. "hmac" or "poseidon".
	Name() string
}
