// Package workers hosts C13's long-lived background tasks: poll status
// transitions, reward dispatch, and anchor submission. The poll status,
// anchor and chain integrity workers are cancellable ticker loops (reward
// dispatch runs one goroutine per credit), grounded on the teacher's Poller.Run shape in
// internal/mempool/poller.go (select on ctx.Done() / ticker.C, log and
// continue on per-tick errors rather than exiting the loop).
package workers

import (
	"context"
	"log"
	"time"

	"github.com/evoting/core/internal/auditchain"
	"github.com/evoting/core/internal/db"
	"github.com/evoting/core/internal/models"
)

// PollStatusWorker sweeps scheduled polls into active and active polls
// into ended as their windows open/close (spec.md §4.5/§4.13).
type PollStatusWorker struct {
	store *db.PostgresStore
}

// NewPollStatusWorker builds a PollStatusWorker.
func NewPollStatusWorker(store *db.PostgresStore) *PollStatusWorker {
	return &PollStatusWorker{store: store}
}

// Run sweeps every 30s until ctx is cancelled.
func (w *PollStatusWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	log.Println("[workers] poll status worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[workers] poll status worker stopping")
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *PollStatusWorker) sweepOnce(ctx context.Context) {
	toActivate, toEnd, err := w.store.PollsNeedingTransition(ctx)
	if err != nil {
		log.Printf("[workers] poll transition sweep failed: %v", err)
		return
	}
	for _, id := range toActivate {
		if err := w.store.UpdatePollStatus(ctx, id, models.PollActive); err != nil {
			log.Printf("[workers] failed to activate poll %s: %v", id, err)
			continue
		}
		log.Printf("[workers] poll %s transitioned to active", id)
	}
	for _, id := range toEnd {
		if err := w.store.UpdatePollStatus(ctx, id, models.PollEnded); err != nil {
			log.Printf("[workers] failed to end poll %s: %v", id, err)
			continue
		}
		log.Printf("[workers] poll %s transitioned to ended", id)
	}
}

// AnchorWorker periodically submits unanchored audit chain entries to the
// external ledger (spec.md §4.11).
type AnchorWorker struct {
	anchorer *auditchain.Anchorer
}

// NewAnchorWorker builds an AnchorWorker.
func NewAnchorWorker(anchorer *auditchain.Anchorer) *AnchorWorker {
	return &AnchorWorker{anchorer: anchorer}
}

// Run submits pending anchor batches every auditchain.AnchorInterval until
// ctx is cancelled.
func (w *AnchorWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(auditchain.AnchorInterval)
	defer ticker.Stop()

	log.Println("[workers] anchor worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[workers] anchor worker stopping")
			return
		case <-ticker.C:
			if err := w.anchorer.SubmitPendingBatch(ctx); err != nil {
				log.Printf("[workers] anchor submission failed: %v", err)
			}
		}
	}
}

// ChainIntegrityWorker periodically recomputes the chain head and trips
// the read-only gate the moment a mismatch is found (spec.md §4.11's
// FATAL condition), rather than surfacing it only as a "verified: false"
// flag on the public read endpoint.
type ChainIntegrityWorker struct {
	store    *db.PostgresStore
	verifier *auditchain.Verifier
	gate     *auditchain.ReadOnlyGate
}

// NewChainIntegrityWorker builds a ChainIntegrityWorker.
func NewChainIntegrityWorker(store *db.PostgresStore, verifier *auditchain.Verifier, gate *auditchain.ReadOnlyGate) *ChainIntegrityWorker {
	return &ChainIntegrityWorker{store: store, verifier: verifier, gate: gate}
}

// Run checks the chain head every minute until ctx is cancelled.
func (w *ChainIntegrityWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	log.Println("[workers] chain integrity worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("[workers] chain integrity worker stopping")
			return
		case <-ticker.C:
			w.checkOnce(ctx)
		}
	}
}

func (w *ChainIntegrityWorker) checkOnce(ctx context.Context) {
	head, err := w.store.ChainHead(ctx)
	if err != nil {
		log.Printf("[workers] chain integrity check failed to read head: %v", err)
		return
	}
	if err := w.verifier.VerifyEntry(ctx, head.Sequence); err != nil {
		log.Printf("[workers] CHAIN INTEGRITY FAILURE, entering read-only mode: %v", err)
		if gateErr := w.gate.Trip(ctx, err.Error()); gateErr != nil {
			log.Printf("[workers] failed to trip read-only gate: %v", gateErr)
		}
	}
}

// RewardDispatcher is the contract the reward-credit post-commit hook
// depends on; its implementation (an external payout/ledger system) is an
// explicit Non-goal — only the fire-and-forget call shape is specified
// here (spec.md §4.7 step 9).
type RewardDispatcher interface {
	CreditReward(ctx context.Context, pollID string, reward models.RewardConfig) error
}

// LoggingRewardDispatcher logs the reward credit instead of calling out to
// an external payout system — that integration is an explicit Non-goal,
// so this is the default RewardDispatcher wired in its place.
type LoggingRewardDispatcher struct{}

// CreditReward implements RewardDispatcher.
func (LoggingRewardDispatcher) CreditReward(ctx context.Context, pollID string, reward models.RewardConfig) error {
	log.Printf("[workers] reward credit: poll=%s amount=%d asset=%s", pollID, reward.Amount, reward.Asset)
	return nil
}

// DispatchRewardAsync fires CreditReward in its own goroutine so the
// caller (the vote handler, after commit) never blocks on it.
func DispatchRewardAsync(dispatcher RewardDispatcher, pollID string, reward models.RewardConfig) {
	if dispatcher == nil || !reward.Enabled {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dispatcher.CreditReward(ctx, pollID, reward); err != nil {
			log.Printf("[workers] reward dispatch failed for poll %s: %v", pollID, err)
		}
	}()
}
