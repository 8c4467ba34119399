package crypto

import "testing"

func TestHMACHasherDeterministic(t *testing.T) {
	h := NewHMACHasher([]byte("salt-value"))
	a := h.Hash("poll-1", "voter-1")
	b := h.Hash("poll-1", "voter-1")
	if a != b {
		t.Fatalf("expected deterministic hash, got %q != %q", a, b)
	}
}

func TestHMACHasherDiffersByInput(t *testing.T) {
	h := NewHMACHasher([]byte("salt-value"))
	a := h.Hash("poll-1", "voter-1")
	b := h.Hash("poll-1", "voter-2")
	if a == b {
		t.Fatalf("expected distinct hashes for distinct voters")
	}
}

func TestHMACHasherVerify(t *testing.T) {
	h := NewHMACHasher([]byte("salt-value"))
	digest := h.Hash("poll-1", "voter-1")
	if !h.Verify(digest, "poll-1", "voter-1") {
		t.Fatalf("expected Verify to accept the matching digest")
	}
	if h.Verify(digest, "poll-1", "voter-2") {
		t.Fatalf("expected Verify to reject a mismatched input")
	}
}

func TestRegistrySwitchNoCallSiteChange(t *testing.T) {
	for _, algo := range []string{"hmac", "poseidon"} {
		r := NewRegistry(algo, []byte("some-salt-012345"))
		h := r.Active()
		digest := h.Hash("poll-7", "voter-9")
		if !h.Verify(digest, "poll-7", "voter-9") {
			t.Fatalf("algo=%s: Verify rejected its own Hash output", algo)
		}
		if h.Name() != algo {
			t.Fatalf("algo=%s: Name() reported %q", algo, h.Name())
		}
	}
}

func TestPoseidonHasherDeterministic(t *testing.T) {
	h := NewPoseidonHasher([]byte("voter-salt"))
	a := h.Hash("poll-42")
	b := h.Hash("poll-42")
	if a != b {
		t.Fatalf("expected deterministic poseidon hash")
	}
	if h.Hash("poll-42") == h.Hash("poll-43") {
		t.Fatalf("expected distinct poseidon hashes for distinct polls")
	}
}

func TestZKVerifierDevModeAcceptsWithoutKey(t *testing.T) {
	v := NewZKVerifier(false)
	ok, err := v.Verify(nil, PublicSignals{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected dev-mode (no key, FailClosed=false) to accept")
	}
}

func TestZKVerifierFailClosedWithoutKey(t *testing.T) {
	v := NewZKVerifier(true)
	ok, err := v.Verify(nil, PublicSignals{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected fail-closed mode (no key) to reject")
	}
}
