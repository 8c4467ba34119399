// Package circuitbreaker implements a three-state breaker (closed / open /
// half-open) protecting calls to the external biometric verifier and
// anchor ledger, per spec.md §5: 5 consecutive failures trips it open for
// a 30s cooldown, after which 2 consecutive probe successes close it again.
// Grounded on the mutex-guarded state-struct shape of the teacher's
// AlertManager in internal/heuristics/alert_system.go.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned, unwrapped, by Call when the breaker is open and the
// cooldown hasn't elapsed yet (Allow reports the same condition as false).
var ErrOpen = errors.New("circuitbreaker: open")

type state int

const (
	closed state = iota
	open
	halfOpen
)

// Breaker guards one upstream dependency. It carries no package-level
// state — callers hold their own instance per dependency.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	cooldown         time.Duration
	probeSuccesses   int

	st              state
	consecutiveFail int
	consecutiveOK   int
	openedAt        time.Time
}

// New builds a Breaker that opens after failureThreshold consecutive
// failures, stays open for cooldown, then requires probeSuccesses
// consecutive half-open successes to close again.
func New(failureThreshold int, cooldown time.Duration, probeSuccesses int) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		probeSuccesses:   probeSuccesses,
	}
}

// Default returns the spec.md §5 breaker: 5 failures / 30s / 2 probes.
func Default() *Breaker {
	return New(5, 30*time.Second, 2)
}

// Allow reports whether a call should proceed right now, transitioning
// open->halfOpen once the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case closed, halfOpen:
		return true
	case open:
		if time.Since(b.openedAt) >= b.cooldown {
			b.st = halfOpen
			b.consecutiveOK = 0
			return true
		}
		return false
	}
	return true
}

// RecordSuccess reports a successful call, closing the breaker once enough
// consecutive half-open probes succeed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFail = 0
	switch b.st {
	case halfOpen:
		b.consecutiveOK++
		if b.consecutiveOK >= b.probeSuccesses {
			b.st = closed
			b.consecutiveOK = 0
		}
	case closed:
		// already healthy
	}
}

// RecordFailure reports a failed call, tripping the breaker open once the
// failure threshold is reached (or immediately, from half-open).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case halfOpen:
		b.st = open
		b.openedAt = time.Now()
		b.consecutiveOK = 0
	case closed:
		b.consecutiveFail++
		if b.consecutiveFail >= b.failureThreshold {
			b.st = open
			b.openedAt = time.Now()
			b.consecutiveFail = 0
		}
	}
}

// Call runs fn if the breaker allows it, recording the outcome.
func (b *Breaker) Call(fn func() error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn()
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// StateName reports the breaker's current state for health/metrics output.
func (b *Breaker) StateName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.st {
	case open:
		return "open"
	case halfOpen:
		return "half_open"
	default:
		return "closed"
	}
}
