package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/evoting/core/internal/models"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateNullifier is returned when a (pollID, nullifierHash) pair
// already exists — the database-enforced duplicate-vote guard of spec.md
// §4.7, which needs no app-level locking because the unique constraint on
// nullifiers(poll_id, nullifier_hash) does the serialization.
var ErrDuplicateNullifier = errors.New("db: duplicate nullifier")

// CastVoteInput bundles everything CastVote needs to persist atomically.
type CastVoteInput struct {
	Vote          models.Vote
	NullifierHash string
	Attestation   models.VoteAttestation
	PrevHash      string
	HashFn        func(prevHash string, v models.Vote, seq int64) string
}

// CastVoteResult is what the caller needs to report back and to react to
// post-commit (reward dispatch, anchor submission).
type CastVoteResult struct {
	VoteID       string
	ChainSequence int64
	ChainHash    string
}

const pgUniqueViolation = "23505"

// isUniqueViolation detects a Postgres unique_violation without importing
// the full pgconn error machinery at every call site.
func isUniqueViolation(err error) bool {
	return err != nil && errorCode(err) == pgUniqueViolation
}

// CastVote runs the whole C7 pipeline as one transaction: it inserts the
// vote row, then the nullifier that references it (a concurrent duplicate
// vote fails on the nullifier's unique constraint), appends to the audit chain under
// SELECT ... FOR UPDATE (the serialization point grounded on spec.md §5's
// stated audit-chain-append bottleneck), then the attestation, and commits.
// Any failure rolls back everything — a caller never sees a half-cast vote.
func (s *PostgresStore) CastVote(ctx context.Context, in CastVoteInput) (*CastVoteResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("db: begin cast vote: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO votes (id, poll_id, option_id, survey_blob, demo_gender, demo_birth_decade, demo_region_code, created_at)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8)`,
		in.Vote.ID, in.Vote.PollID, in.Vote.OptionID, nilIfEmpty(in.Vote.SurveyBlob),
		string(in.Vote.Demographic.Gender), in.Vote.Demographic.BirthYearBucket,
		in.Vote.Demographic.RegionCode, in.Vote.CreatedAt); err != nil {
		return nil, fmt.Errorf("db: insert vote: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO nullifiers (poll_id, nullifier_hash, vote_id, created_at)
		VALUES ($1,$2,$3,now())`,
		in.Vote.PollID, in.NullifierHash, in.Vote.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateNullifier
		}
		return nil, fmt.Errorf("db: insert nullifier: %w", err)
	}

	var lastSeq int64
	var lastHash string
	err = tx.QueryRow(ctx, `
		SELECT sequence, hash FROM audit_chain ORDER BY sequence DESC LIMIT 1 FOR UPDATE`).
		Scan(&lastSeq, &lastHash)
	if errors.Is(err, pgx.ErrNoRows) {
		lastSeq, lastHash = 0, in.PrevHash
	} else if err != nil {
		return nil, fmt.Errorf("db: lock audit chain tail: %w", err)
	}

	nextSeq := lastSeq + 1
	nextHash := in.HashFn(lastHash, in.Vote, nextSeq)

	if _, err := tx.Exec(ctx, `
		INSERT INTO audit_chain (sequence, vote_id, poll_id, option_id, timestamp_bucket, hash, prev_hash, created_at)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,now())`,
		nextSeq, in.Vote.ID, in.Vote.PollID, in.Vote.OptionID,
		in.Vote.CreatedAt.Unix(), nextHash, lastHash); err != nil {
		return nil, fmt.Errorf("db: append audit chain: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO vote_attestations (vote_id, payload, device_key_thumbprint_hash, nonce_used, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		in.Attestation.VoteID, in.Attestation.Payload, in.Attestation.DeviceKeyThumbprintHash,
		in.Attestation.NonceUsed, in.Attestation.CreatedAt); err != nil {
		return nil, fmt.Errorf("db: insert attestation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("db: commit cast vote: %w", err)
	}

	return &CastVoteResult{VoteID: in.Vote.ID, ChainSequence: nextSeq, ChainHash: nextHash}, nil
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

// NullifierExists checks whether a nullifier has already been consumed for
// a poll, used by the eligibility pre-check before the full transaction
// (spec.md §4.7 step 3) so the common duplicate-vote case fails without
// grabbing the chain-tail lock.
func (s *PostgresStore) NullifierExists(ctx context.Context, pollID, nullifierHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM nullifiers WHERE poll_id = $1 AND nullifier_hash = $2)`,
		pollID, nullifierHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db: check nullifier: %w", err)
	}
	return exists, nil
}

// VoteTallyByOption counts votes per option for a poll, used as the raw
// input to k-anonymity aggregation (spec.md §4.8). Counts are returned
// un-suppressed; suppression is the aggregation package's job.
func (s *PostgresStore) VoteTallyByOption(ctx context.Context, pollID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT option_id, COUNT(*) FROM votes WHERE poll_id = $1 GROUP BY option_id`, pollID)
	if err != nil {
		return nil, fmt.Errorf("db: tally votes: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var optionID *string
		var count int
		if err := rows.Scan(&optionID, &count); err != nil {
			return nil, fmt.Errorf("db: scan tally: %w", err)
		}
		key := ""
		if optionID != nil {
			key = *optionID
		}
		out[key] = count
	}
	return out, rows.Err()
}

// VoteTallyByOptionAndDemographic counts votes per (option, demographic
// cell) for a poll — the cross-tab aggregation cuts on gender/region/
// birth-decade that k-anonymity suppression is applied to (spec.md §4.8).
func (s *PostgresStore) VoteTallyByOptionAndDemographic(ctx context.Context, pollID string) (map[string]map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT option_id, demo_gender, demo_birth_decade, demo_region_code, COUNT(*)
		FROM votes WHERE poll_id = $1
		GROUP BY option_id, demo_gender, demo_birth_decade, demo_region_code`, pollID)
	if err != nil {
		return nil, fmt.Errorf("db: tally votes by demographic: %w", err)
	}
	defer rows.Close()

	out := map[string]map[string]int{}
	for rows.Next() {
		var optionID *string
		var gender, regionCode string
		var birthDecade, count int
		if err := rows.Scan(&optionID, &gender, &birthDecade, &regionCode, &count); err != nil {
			return nil, fmt.Errorf("db: scan demographic tally: %w", err)
		}
		opt := ""
		if optionID != nil {
			opt = *optionID
		}
		cell := fmt.Sprintf("%s|%d|%s", gender, birthDecade, regionCode)
		if out[opt] == nil {
			out[opt] = map[string]int{}
		}
		out[opt][cell] = count
	}
	return out, rows.Err()
}
