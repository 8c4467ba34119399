package voting

import (
	"testing"

	"github.com/evoting/core/internal/crypto"
	"github.com/evoting/core/internal/models"
)

func TestDeriveKeyedHasherHMACDeterministic(t *testing.T) {
	base := crypto.NewHMACHasher([]byte("base-key"))
	a := deriveKeyedHasher(base, "voter-secret-1")
	b := deriveKeyedHasher(base, "voter-secret-1")
	if a.Hash("poll-1") != b.Hash("poll-1") {
		t.Fatalf("expected identical secrets to derive identical hashes")
	}
}

func TestDeriveKeyedHasherDiffersBySecret(t *testing.T) {
	base := crypto.NewHMACHasher([]byte("base-key"))
	a := deriveKeyedHasher(base, "voter-secret-1")
	b := deriveKeyedHasher(base, "voter-secret-2")
	if a.Hash("poll-1") == b.Hash("poll-1") {
		t.Fatalf("expected distinct secrets to derive distinct hashes")
	}
}

func TestVerifyAttestationAcceptsMatchingMAC(t *testing.T) {
	deviceHash := crypto.NewHMACHasher([]byte("device-secret"))
	p := &Pipeline{deviceHash: deviceHash}

	voter := &models.User{DeviceKeyThumbprint: "thumb-1"}
	in := CastInput{
		Voter:           voter,
		Poll:            models.Poll{ID: "poll-1"},
		OptionID:        "opt-a",
		NonceUsed:       "nonce-1",
		TimestampBucket: 42,
	}

	deviceSecret := deviceHash.Hash(voter.DeviceKeyThumbprint)
	mac := deriveKeyedHasher(deviceHash, deviceSecret).Hash(in.NonceUsed, in.Poll.ID, in.OptionID, "42")
	in.AttestationPayload = []byte(mac)

	if !p.verifyAttestation(in) {
		t.Fatalf("expected a correctly derived attestation MAC to verify")
	}
}

func TestVerifyAttestationRejectsWrongDevice(t *testing.T) {
	deviceHash := crypto.NewHMACHasher([]byte("device-secret"))
	p := &Pipeline{deviceHash: deviceHash}

	voter := &models.User{DeviceKeyThumbprint: "thumb-1"}
	in := CastInput{
		Voter:           voter,
		Poll:            models.Poll{ID: "poll-1"},
		OptionID:        "opt-a",
		NonceUsed:       "nonce-1",
		TimestampBucket: 42,
	}

	otherSecret := deviceHash.Hash("thumb-2")
	mac := deriveKeyedHasher(deviceHash, otherSecret).Hash(in.NonceUsed, in.Poll.ID, in.OptionID, "42")
	in.AttestationPayload = []byte(mac)

	if p.verifyAttestation(in) {
		t.Fatalf("expected a MAC derived from a different device's thumbprint to be rejected")
	}
}

func TestFirstMatchingRegionPrefersOverlap(t *testing.T) {
	got := firstMatchingRegion([]string{"GE-AJ", "GE-TB"}, []string{"GE-TB"})
	if got != "GE-TB" {
		t.Fatalf("expected overlapping region GE-TB, got %q", got)
	}
}

func TestFirstMatchingRegionFallsBackToFirstUserRegion(t *testing.T) {
	got := firstMatchingRegion([]string{"GE-AJ"}, []string{"GE-TB"})
	if got != "GE-AJ" {
		t.Fatalf("expected fallback to user's first region, got %q", got)
	}
}
