// Package ratelimit implements C10: per-route-class quotas keyed by
// whichever identity a route cares about (ip, deviceId, userId). Each quota
// is a single counter whose Window restarts on every request; it is not a
// sliding log of request times.
// Directly grounded on the teacher's internal/api/ratelimit.go token-bucket
// middleware, generalized from one hardcoded per-IP policy to a map of
// named policies sharing the Shield's Redis-backed cache instead of an
// in-process map, since state here must be visible to every API replica.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/evoting/core/internal/cache"
)

// Policy is one named rate limit: at most Limit requests per Window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Policies mirrors spec.md §4.10's distinct per-route-class limits.
var (
	PolicyLogin      = Policy{Name: "login", Limit: 10, Window: time.Minute}
	PolicyEnrollment = Policy{Name: "enrollment", Limit: 5, Window: 10 * time.Minute}
	PolicyVoting     = Policy{Name: "voting", Limit: 20, Window: time.Minute}
	PolicyAdmin      = Policy{Name: "admin", Limit: 0, Window: 0} // exempt, see IsExempt
)

// IsExempt reports whether a policy is exempt from enforcement (spec.md
// §4.10: "Admin routes are exempt from global limits").
func (p Policy) IsExempt() bool { return p.Limit <= 0 }

// Limiter enforces Policies against a shared cache.
type Limiter struct {
	cache *cache.Store
}

// New builds a Limiter over store.
func New(store *cache.Store) *Limiter {
	return &Limiter{cache: store}
}

// Decision is the outcome of an Allow check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Allow checks identity against policy, incrementing its window counter.
func (l *Limiter) Allow(ctx context.Context, policy Policy, identity string) (Decision, error) {
	if policy.IsExempt() {
		return Decision{Allowed: true}, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s", policy.Name, identity)
	count, err := l.cache.IncrWithExpiry(ctx, key, policy.Window)
	if err != nil {
		return Decision{}, err
	}

	if count > int64(policy.Limit) {
		return Decision{Allowed: false, RetryAfter: policy.Window}, nil
	}
	return Decision{Allowed: true}, nil
}
