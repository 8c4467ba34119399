package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/evoting/core/internal/models"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	credited []string
	done     chan struct{}
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{done: make(chan struct{}, 1)}
}

func (d *recordingDispatcher) CreditReward(ctx context.Context, pollID string, reward models.RewardConfig) error {
	d.mu.Lock()
	d.credited = append(d.credited, pollID)
	d.mu.Unlock()
	d.done <- struct{}{}
	return nil
}

func TestDispatchRewardAsyncCallsCreditRewardWhenEnabled(t *testing.T) {
	d := newRecordingDispatcher()
	DispatchRewardAsync(d, "poll-1", models.RewardConfig{Enabled: true, Amount: 10, Asset: "GEL"})

	select {
	case <-d.done:
	case <-time.After(time.Second):
		t.Fatalf("expected CreditReward to be called")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.credited) != 1 || d.credited[0] != "poll-1" {
		t.Fatalf("expected a single credit for poll-1, got %v", d.credited)
	}
}

func TestDispatchRewardAsyncSkipsWhenDisabled(t *testing.T) {
	d := newRecordingDispatcher()
	DispatchRewardAsync(d, "poll-1", models.RewardConfig{Enabled: false})

	select {
	case <-d.done:
		t.Fatalf("expected CreditReward not to be called for a disabled reward")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchRewardAsyncSkipsNilDispatcher(t *testing.T) {
	// Must not panic.
	DispatchRewardAsync(nil, "poll-1", models.RewardConfig{Enabled: true})
}

func TestLoggingRewardDispatcherNeverErrors(t *testing.T) {
	var d LoggingRewardDispatcher
	if err := d.CreditReward(context.Background(), "poll-1", models.RewardConfig{Enabled: true, Amount: 5}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
