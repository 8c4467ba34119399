// Package api wires gin handlers, middleware, and the public websocket hub
// on top of every other internal package. Grounded on the teacher's
// internal/api/routes.go (APIHandler struct + SetupRouter), generalized
// from one handler struct with four collaborators to one with the full
// set this domain needs.
package api

import (
	"github.com/evoting/core/internal/auditchain"
	"github.com/evoting/core/internal/cache"
	"github.com/evoting/core/internal/crypto"
	"github.com/evoting/core/internal/db"
	"github.com/evoting/core/internal/enrollment"
	"github.com/evoting/core/internal/polls"
	"github.com/evoting/core/internal/ratelimit"
	"github.com/evoting/core/internal/session"
	"github.com/evoting/core/internal/shield"
	"github.com/evoting/core/internal/voting"
	"github.com/evoting/core/internal/workers"
)

// breakerReporter is satisfied by both biometric.Client and
// ledger.HTTPClient, letting the health endpoint report either without
// importing both concrete packages.
type breakerReporter interface {
	BreakerState() string
}

// Deps bundles every collaborator a handler might need. Built once at
// startup in cmd/server and passed to NewRouter.
type Deps struct {
	Store      *db.PostgresStore
	Cache      *cache.Store
	Nonces     *session.Nonces
	Tokens     *session.Tokens
	Enrollment *enrollment.Engine
	Polls      *polls.Service
	Voting     *voting.Pipeline
	ChainVerif *auditchain.Verifier
	Limiter    *ratelimit.Limiter
	Hub        *Hub

	// DeviceHash is keyed with DEVICE_HASH_SECRET — the same hasher the
	// voting pipeline uses to verify attestation MACs. Enrollment uses it
	// to hand the derived per-device key back to the client on issuance,
	// since only the server can compute it from the secret.
	DeviceHash crypto.Hasher

	// Rewards fires the post-commit reward credit for reward-enabled
	// polls (spec.md §4.7 step 9). Left nil in tests that don't exercise
	// reward dispatch.
	Rewards workers.RewardDispatcher

	// Shield records risk signals the proxy can't observe from the
	// response alone (biometric rejection, admin moderation flags). Left
	// nil in tests that don't exercise risk scoring.
	Shield *shield.Shield

	// Biometric and Ledger are reported in the aggregate health endpoint
	// as breakerReporter so neither concrete client package needs to be
	// imported here; either may be left nil in tests.
	Biometric breakerReporter
	Ledger    breakerReporter

	MinKAnonymity  int
	NoiseEpsilon   float64 // 0 disables Laplace noise
	AllowedOrigins []string
}

// Handler is the receiver every route method hangs off, grounded on the
// teacher's *APIHandler shape.
type Handler struct {
	d *Deps
}

func newHandler(d *Deps) *Handler { return &Handler{d: d} }
