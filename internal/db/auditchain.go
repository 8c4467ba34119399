package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/evoting/core/internal/models"
	"github.com/jackc/pgx/v5"
)

// ChainEntryBySequence fetches one audit chain link, for the public
// verifier endpoint GET /public/chain/{n} (spec.md §6).
func (s *PostgresStore) ChainEntryBySequence(ctx context.Context, seq int64) (*models.AuditChainEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT sequence, vote_id, poll_id, option_id, timestamp_bucket, hash, prev_hash, anchor_receipt, created_at
		FROM audit_chain WHERE sequence = $1`, seq)
	return scanChainEntry(row)
}

// ChainHead returns the latest chain link, or ErrNotFound if the chain is
// still empty.
func (s *PostgresStore) ChainHead(ctx context.Context) (*models.AuditChainEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT sequence, vote_id, poll_id, option_id, timestamp_bucket, hash, prev_hash, anchor_receipt, created_at
		FROM audit_chain ORDER BY sequence DESC LIMIT 1`)
	return scanChainEntry(row)
}

func scanChainEntry(row pgx.Row) (*models.AuditChainEntry, error) {
	var e models.AuditChainEntry
	var optionID *string
	var anchor *string
	err := row.Scan(&e.Sequence, &e.VoteID, &e.PollID, &optionID, &e.TimestampBucket,
		&e.Hash, &e.PrevHash, &anchor, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: scan chain entry: %w", err)
	}
	if optionID != nil {
		e.OptionID = *optionID
	}
	e.AnchorReceipt = anchor
	return &e, nil
}

// UnanchoredChainEntries returns chain links still missing an external
// anchor receipt, oldest first, for the anchor-submission worker (spec.md
// §4.9's periodic batching).
func (s *PostgresStore) UnanchoredChainEntries(ctx context.Context, limit int) ([]models.AuditChainEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sequence, vote_id, poll_id, option_id, timestamp_bucket, hash, prev_hash, anchor_receipt, created_at
		FROM audit_chain WHERE anchor_receipt IS NULL ORDER BY sequence ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("db: list unanchored entries: %w", err)
	}
	defer rows.Close()

	var out []models.AuditChainEntry
	for rows.Next() {
		e, err := scanChainEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// RecordAnchorReceipt stamps a chain link with the external ledger's
// receipt once the anchor worker successfully submits a batch.
func (s *PostgresStore) RecordAnchorReceipt(ctx context.Context, seq int64, receipt string) error {
	_, err := s.pool.Exec(ctx, `UPDATE audit_chain SET anchor_receipt = $2 WHERE sequence = $1`, seq, receipt)
	if err != nil {
		return fmt.Errorf("db: record anchor receipt: %w", err)
	}
	return nil
}

// ChainLength reports the current chain length (the highest sequence
// number), 0 if the chain is empty.
func (s *PostgresStore) ChainLength(ctx context.Context) (int64, error) {
	var n *int64
	err := s.pool.QueryRow(ctx, `SELECT MAX(sequence) FROM audit_chain`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db: chain length: %w", err)
	}
	if n == nil {
		return 0, nil
	}
	return *n, nil
}
