// Package enrollment drives C4: the document -> liveness -> face-match ->
// credential state machine. Each external verifier call is retried at most
// once with jittered backoff, grounded on the teacher's poller retry-tick
// shape in internal/mempool/poller.go, generalized from "retry forever on
// a ticker" to "retry once with jitter, then record a Shield-visible
// failure".
package enrollment

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/evoting/core/internal/biometric"
	"github.com/evoting/core/internal/cache"
	"github.com/evoting/core/internal/crypto"
	"github.com/evoting/core/internal/db"
	"github.com/evoting/core/internal/models"
	"github.com/google/uuid"
)

const (
	defaultLivenessThreshold  = 0.8
	defaultFaceMatchThreshold = 0.7
	sessionTTL                = time.Hour
	maxFailuresPerSession     = 3
)

var (
	ErrSessionExpired    = errors.New("enrollment: session expired")
	ErrWrongState        = errors.New("enrollment: operation not valid in current state")
	ErrDocumentRejected  = errors.New("enrollment: document verification failed")
	ErrLivenessRejected  = errors.New("enrollment: liveness check failed")
	ErrFaceMatchRejected = errors.New("enrollment: face match failed")
)

// Engine wires the biometric verifier, persistence, and the crypto
// registry's pnHash derivation together.
type Engine struct {
	store     *db.PostgresStore
	verifier  biometric.Verifier
	hasher    crypto.Hasher
	failCache *cache.Store

	LivenessThreshold  float64
	FaceMatchThreshold float64
}

// New builds an Engine. hasher must be keyed with the personal-number
// salt (PN_HASH_SECRET).
func New(store *db.PostgresStore, verifier biometric.Verifier, hasher crypto.Hasher, failCache *cache.Store) *Engine {
	return &Engine{
		store:              store,
		verifier:           verifier,
		hasher:             hasher,
		failCache:          failCache,
		LivenessThreshold:  defaultLivenessThreshold,
		FaceMatchThreshold: defaultFaceMatchThreshold,
	}
}

// Start opens a new enrollment session for a device (spec.md §3: one
// active session per device — callers should check for an existing
// non-expired session before calling Start).
func (e *Engine) Start(ctx context.Context, deviceID string) (*models.EnrollmentSession, error) {
	now := time.Now()
	es := &models.EnrollmentSession{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		State:     models.EnrollmentStarted,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	if err := e.store.InsertEnrollmentSession(ctx, es); err != nil {
		return nil, err
	}
	return es, nil
}

// documentPayload is the subset of the NFC/MRZ payload the engine needs.
type documentPayload struct {
	PersonalNumber string
	Gender         models.Gender
	BirthYear      int
	Nationality    string
	RawDocument    []byte
}

// SubmitDocument verifies and extracts data from a scanned document,
// advancing started -> document_ok.
func (e *Engine) SubmitDocument(ctx context.Context, sessionID string, raw []byte, personalNumber string, gender models.Gender, birthYear int, nationality string) (*models.EnrollmentSession, error) {
	es, err := e.loadActive(ctx, sessionID, models.EnrollmentStarted)
	if err != nil {
		return nil, err
	}

	result, err := retryOnce(ctx, func(ctx context.Context) (*biometric.DocumentCheckResult, error) {
		return e.verifier.VerifyDocument(ctx, raw)
	})
	if err != nil || !result.Passed {
		return e.failAndReturn(ctx, es, ErrDocumentRejected)
	}

	es.PersonalNumber = personalNumber
	es.Gender = gender
	es.BirthYear = birthYear
	es.Nationality = nationality
	es.State = models.EnrollmentDocumentOK

	if err := e.store.UpdateEnrollmentSessionState(ctx, es.ID, es.State, es.FailureCount); err != nil {
		return nil, err
	}
	return es, nil
}

// SubmitLiveness checks a liveness video, advancing document_ok -> liveness_ok.
func (e *Engine) SubmitLiveness(ctx context.Context, sessionID string, selfieVideo []byte) (*models.EnrollmentSession, error) {
	es, err := e.loadActive(ctx, sessionID, models.EnrollmentDocumentOK)
	if err != nil {
		return nil, err
	}

	result, err := retryOnce(ctx, func(ctx context.Context) (*biometric.LivenessResult, error) {
		return e.verifier.VerifyLiveness(ctx, selfieVideo)
	})
	if err != nil || !result.Passed || result.Score < e.LivenessThreshold {
		return e.failAndReturn(ctx, es, ErrLivenessRejected)
	}

	es.State = models.EnrollmentLivenessOK
	if err := e.store.UpdateEnrollmentSessionScores(ctx, es.ID, result.Score, es.FaceMatchScore); err != nil {
		return nil, err
	}
	if err := e.store.UpdateEnrollmentSessionState(ctx, es.ID, es.State, es.FailureCount); err != nil {
		return nil, err
	}
	return es, nil
}

// SubmitFaceMatch compares the document photo to a live frame, advancing
// liveness_ok -> matched.
func (e *Engine) SubmitFaceMatch(ctx context.Context, sessionID string, documentImage, selfieFrame []byte) (*models.EnrollmentSession, error) {
	es, err := e.loadActive(ctx, sessionID, models.EnrollmentLivenessOK)
	if err != nil {
		return nil, err
	}

	result, err := retryOnce(ctx, func(ctx context.Context) (*biometric.FaceMatchResult, error) {
		return e.verifier.MatchFace(ctx, documentImage, selfieFrame)
	})
	if err != nil || !result.Passed || result.Score < e.FaceMatchThreshold {
		return e.failAndReturn(ctx, es, ErrFaceMatchRejected)
	}

	es.State = models.EnrollmentMatched
	if err := e.store.UpdateEnrollmentSessionScores(ctx, es.ID, es.LivenessScore, result.Score); err != nil {
		return nil, err
	}
	if err := e.store.UpdateEnrollmentSessionState(ctx, es.ID, es.State, es.FailureCount); err != nil {
		return nil, err
	}
	return es, nil
}

// Issue finalizes enrollment: derives pnHash, writes (or updates, on
// re-enrollment) the User row, and marks the session issued.
func (e *Engine) Issue(ctx context.Context, sessionID, deviceKeyThumbprint string) (*models.User, error) {
	es, err := e.loadActive(ctx, sessionID, models.EnrollmentMatched)
	if err != nil {
		return nil, err
	}

	pnHash := e.hasher.Hash(es.PersonalNumber)
	now := time.Now()

	existing, err := e.store.UserByPNHash(ctx, pnHash)
	switch {
	case errors.Is(err, db.ErrNotFound):
		u := &models.User{
			ID:                  uuid.NewString(),
			PNHash:              pnHash,
			Gender:              es.Gender,
			BirthYear:           es.BirthYear,
			RegionCodes:         nil,
			DeviceKeyThumbprint: deviceKeyThumbprint,
			EnrolledAt:          now,
			UpdatedAt:           now,
		}
		if err := e.store.InsertUser(ctx, u); err != nil {
			return nil, err
		}
		existing = u
	case err != nil:
		return nil, err
	default:
		// Re-enrollment (spec.md §4.4, §9 Open Question #1): update in
		// place, never duplicate. Stored nullifiers are left untouched; the
		// new device thumbprint changes the voter secret used for later votes.
		existing.Gender = es.Gender
		existing.BirthYear = es.BirthYear
		existing.DeviceKeyThumbprint = deviceKeyThumbprint
		existing.UpdatedAt = now
		if err := e.store.UpdateUserOnReEnrollment(ctx, existing); err != nil {
			return nil, err
		}
	}

	es.State = models.EnrollmentIssued
	if err := e.store.UpdateEnrollmentSessionState(ctx, es.ID, es.State, es.FailureCount); err != nil {
		return nil, err
	}
	return existing, nil
}

func (e *Engine) loadActive(ctx context.Context, sessionID string, want models.EnrollmentState) (*models.EnrollmentSession, error) {
	es, err := e.store.EnrollmentSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if es.Expired(time.Now()) {
		return nil, ErrSessionExpired
	}
	if es.State != want {
		return nil, ErrWrongState
	}
	return es, nil
}

// failAndReturn marks a failed verification attempt, incrementing the
// session's failure counter and a per-device counter in the cache
// ("enrollment_fail:<deviceId>", one-hour TTL). The Shield does not read
// that counter.
func (e *Engine) failAndReturn(ctx context.Context, es *models.EnrollmentSession, cause error) (*models.EnrollmentSession, error) {
	es.FailureCount++
	state := es.State
	if es.FailureCount >= maxFailuresPerSession {
		state = models.EnrollmentFailed
	}
	if err := e.store.UpdateEnrollmentSessionState(ctx, es.ID, state, es.FailureCount); err != nil {
		return nil, err
	}
	if e.failCache != nil {
		_, _ = e.failCache.IncrWithExpiry(ctx, "enrollment_fail:"+es.DeviceID, time.Hour)
	}
	es.State = state
	return es, cause
}

// retryOnce calls fn, and on error retries exactly once after a jittered
// backoff (50-150ms), per spec.md §4.4.
func retryOnce[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}

	jitter := time.Duration(50+rand.Intn(100)) * time.Millisecond
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-time.After(jitter):
	}

	return fn(ctx)
}
