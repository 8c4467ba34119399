package auditchain

import (
	"testing"
	"time"

	"github.com/evoting/core/internal/models"
)

func TestComputeHashDeterministic(t *testing.T) {
	v := models.Vote{ID: "vote-1", PollID: "poll-1", OptionID: "opt-a", CreatedAt: time.Unix(1700000000, 0)}
	a := ComputeHash(GenesisHash, v, 1)
	b := ComputeHash(GenesisHash, v, 1)
	if a != b {
		t.Fatalf("expected identical inputs to hash identically")
	}
}

func TestComputeHashDiffersBySequence(t *testing.T) {
	v := models.Vote{ID: "vote-1", PollID: "poll-1", OptionID: "opt-a", CreatedAt: time.Unix(1700000000, 0)}
	a := ComputeHash(GenesisHash, v, 1)
	b := ComputeHash(GenesisHash, v, 2)
	if a == b {
		t.Fatalf("expected distinct sequence numbers to hash differently")
	}
}

func TestComputeHashDiffersByPrevHash(t *testing.T) {
	v := models.Vote{ID: "vote-1", PollID: "poll-1", OptionID: "opt-a", CreatedAt: time.Unix(1700000000, 0)}
	a := ComputeHash(GenesisHash, v, 1)
	b := ComputeHash("deadbeef", v, 1)
	if a == b {
		t.Fatalf("expected distinct prev hashes to chain differently")
	}
}

func TestErrChainMismatchMessage(t *testing.T) {
	err := &ErrChainMismatch{Sequence: 42}
	if err.Error() == "" {
		t.Fatalf("expected a non-empty error message")
	}
}
