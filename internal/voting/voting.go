// Package voting implements C7: the atomic ballot-intake pipeline. All
// steps that need an external call (attestation signature check is local;
// zk proof verification is local math) happen before BEGIN or after
// COMMIT, per spec.md §5 — the transaction itself (internal/db.CastVote)
// only ever talks to Postgres.
package voting

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/evoting/core/internal/auditchain"
	"github.com/evoting/core/internal/crypto"
	"github.com/evoting/core/internal/db"
	"github.com/evoting/core/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotEligible        = errors.New("voting: voter is not eligible for this poll")
	ErrAlreadyVoted       = errors.New("voting: nullifier already used for this poll")
	ErrProofRejected      = errors.New("voting: zk proof verification failed")
	ErrPollNotActive      = errors.New("voting: poll is not open for voting")
	ErrAttestationInvalid = errors.New("voting: device attestation signature is invalid")
	ErrReadOnlyMode       = errors.New("voting: system is in read-only mode pending audit chain investigation")
)

// Pipeline wires together the crypto registry, persistence, and optional
// zk verifier needed to cast one vote.
type Pipeline struct {
	store      *db.PostgresStore
	voterHash  crypto.Hasher // keyed with VOTER_HASH_SECRET, derives voterSecret
	deviceHash crypto.Hasher // keyed with DEVICE_HASH_SECRET, derives each device's attestation key
	gate       *auditchain.ReadOnlyGate
	zk         *crypto.ZKVerifier
}

// NewPipeline builds a Pipeline. voterHash must be keyed with
// VOTER_HASH_SECRET; its algorithm (hmac/poseidon) also determines the
// per-vote nullifier hasher, which is re-derived fresh for each call from
// the voter's own secret, so no single static key signs every nullifier.
// deviceHash must be keyed with DEVICE_HASH_SECRET and is used the same
// way to derive each device's attestation key. gate may be nil in tests
// that don't exercise the read-only path.
func NewPipeline(store *db.PostgresStore, voterHash, deviceHash crypto.Hasher, gate *auditchain.ReadOnlyGate, zk *crypto.ZKVerifier) *Pipeline {
	return &Pipeline{store: store, voterHash: voterHash, deviceHash: deviceHash, gate: gate, zk: zk}
}

// CastInput bundles everything needed to cast one ballot.
type CastInput struct {
	Poll                 models.Poll
	Voter                *models.User
	OptionID             string
	SurveyBlob           []byte
	AttestationPayload   []byte // the device-signed MAC itself, stored verbatim for audit
	DeviceThumbprintHash string // client-claimed thumbprint, stored for audit only — never trusted for verification
	NonceUsed            string
	TimestampBucket      int64
	ZKProof              []byte // optional
}

// Cast runs spec.md §4.7's full pipeline: attestation check, eligibility
// re-check, nullifier derivation, optional proof verification, then the
// atomic DB transaction.
func (p *Pipeline) Cast(ctx context.Context, in CastInput) (*db.CastVoteResult, error) {
	now := time.Now()

	if p.gate != nil {
		if _, tripped, err := p.gate.Tripped(ctx); err == nil && tripped {
			return nil, ErrReadOnlyMode
		}
	}

	if !p.verifyAttestation(in) {
		return nil, ErrAttestationInvalid
	}

	if in.Poll.Status != models.PollActive || now.Before(in.Poll.StartAt) || now.After(in.Poll.EndAt) {
		return nil, ErrPollNotActive
	}
	if !in.Poll.Audience.Match(in.Voter, now) {
		return nil, ErrNotEligible
	}

	voterSecret := p.voterHash.Hash(in.Voter.PNHash, in.Voter.DeviceKeyThumbprint)
	nullifierHasher := deriveKeyedHasher(p.voterHash, voterSecret)
	nullifierHash := nullifierHasher.Hash(in.Poll.ID)

	exists, err := p.store.NullifierExists(ctx, in.Poll.ID, nullifierHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyVoted
	}

	if p.zk != nil && len(in.ZKProof) > 0 {
		pollIDHash := nullifierHasher.Hash("poll-id-commitment", in.Poll.ID)
		ok, err := p.zk.Verify(in.ZKProof, crypto.PublicSignals{
			NullifierHash: nullifierHash,
			PollIDHash:    pollIDHash,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrProofRejected
		}
	}

	vote := models.Vote{
		ID:       uuid.NewString(),
		PollID:   in.Poll.ID,
		OptionID: in.OptionID,
		SurveyBlob: in.SurveyBlob,
		Demographic: models.DemographicBucket{
			Gender:          in.Voter.Gender,
			BirthYearBucket: models.BucketBirthYear(in.Voter.BirthYear),
		},
		CreatedAt: now,
	}
	if len(in.Poll.Audience.Regions) > 0 {
		vote.Demographic.RegionCode = firstMatchingRegion(in.Voter.RegionCodes, in.Poll.Audience.Regions)
	} else if len(in.Voter.RegionCodes) > 0 {
		vote.Demographic.RegionCode = in.Voter.RegionCodes[0]
	}

	attestation := models.VoteAttestation{
		VoteID:                  vote.ID,
		Payload:                 in.AttestationPayload,
		DeviceKeyThumbprintHash: in.DeviceThumbprintHash,
		NonceUsed:               in.NonceUsed,
		CreatedAt:               now,
	}

	result, err := p.store.CastVote(ctx, db.CastVoteInput{
		Vote:          vote,
		NullifierHash: nullifierHash,
		Attestation:   attestation,
		PrevHash:      auditchain.GenesisHash,
		HashFn:        auditchain.ComputeHash,
	})
	if errors.Is(err, db.ErrDuplicateNullifier) {
		return nil, ErrAlreadyVoted
	}
	return result, err
}

// verifyAttestation checks the device-signed statement over (nonce,
// pollId, optionId, timestampBucket) against a key derived from the
// voter's enrolled thumbprint (spec.md §4.5 step 3) — the stored
// thumbprint on the voter record, never the client-claimed one carried
// alongside it in CastInput.
func (p *Pipeline) verifyAttestation(in CastInput) bool {
	deviceSecret := p.deviceHash.Hash(in.Voter.DeviceKeyThumbprint)
	deviceHasher := deriveKeyedHasher(p.deviceHash, deviceSecret)
	bucket := strconv.FormatInt(in.TimestampBucket, 10)
	return deviceHasher.Verify(string(in.AttestationPayload), in.NonceUsed, in.Poll.ID, in.OptionID, bucket)
}

func firstMatchingRegion(userRegions, pollRegions []string) string {
	allowed := map[string]bool{}
	for _, r := range pollRegions {
		allowed[r] = true
	}
	for _, r := range userRegions {
		if allowed[r] {
			return r
		}
	}
	if len(userRegions) > 0 {
		return userRegions[0]
	}
	return ""
}

// deriveKeyedHasher builds a fresh hasher keyed with secret, using the
// same algorithm family as base. Used both to re-key the nullifier hasher
// with a voter's secret and to re-key the attestation hasher with a
// device's secret.
func deriveKeyedHasher(base crypto.Hasher, secret string) crypto.Hasher {
	switch base.Name() {
	case "poseidon":
		return crypto.NewPoseidonHasher([]byte(secret))
	default:
		return crypto.NewHMACHasher([]byte(secret))
	}
}
