package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := New(3, 10*time.Millisecond, 1)
	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("expected closed breaker to allow call %d", i)
		}
		b.RecordFailure()
	}
	if b.Allow() {
		t.Fatalf("expected breaker to be open after reaching failure threshold")
	}
	if b.StateName() != "open" {
		t.Fatalf("expected state open, got %s", b.StateName())
	}
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b := New(1, 5*time.Millisecond, 1)
	b.RecordFailure()
	if b.Allow() {
		t.Fatalf("expected breaker open immediately after tripping")
	}
	time.Sleep(10 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("expected breaker to allow a probe after cooldown")
	}
	b.RecordSuccess()
	if b.StateName() != "closed" {
		t.Fatalf("expected single probe success (threshold 1) to close breaker, got %s", b.StateName())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New(1, 5*time.Millisecond, 2)
	b.RecordFailure()
	time.Sleep(10 * time.Millisecond)
	b.Allow()
	b.RecordFailure()
	if b.StateName() != "open" {
		t.Fatalf("expected a half-open failure to reopen immediately, got %s", b.StateName())
	}
}

func TestCallWrapsErrOpen(t *testing.T) {
	b := New(1, time.Hour, 1)
	b.RecordFailure()
	err := b.Call(func() error { return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while breaker is open, got %v", err)
	}
}

func TestCallRecordsSuccessAndFailure(t *testing.T) {
	b := Default()
	if err := b.Call(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errors.New("boom")
	if err := b.Call(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected underlying error to propagate, got %v", err)
	}
}
