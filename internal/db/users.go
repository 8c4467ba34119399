package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/evoting/core/internal/models"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned by single-row lookups that match no row.
var ErrNotFound = errors.New("db: not found")

// UserByPNHash finds the enrolled user for a given personal-number hash, or
// ErrNotFound if nobody is enrolled under it yet.
func (s *PostgresStore) UserByPNHash(ctx context.Context, pnHash string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, pn_hash, gender, birth_year, region_codes, device_key_thumbprint, enrolled_at, updated_at
		FROM users WHERE pn_hash = $1`, pnHash)
	return scanUser(row)
}

// UserByID looks up a user by primary key.
func (s *PostgresStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, pn_hash, gender, birth_year, region_codes, device_key_thumbprint, enrolled_at, updated_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var gender string
	err := row.Scan(&u.ID, &u.PNHash, &gender, &u.BirthYear, &u.RegionCodes,
		&u.DeviceKeyThumbprint, &u.EnrolledAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: scan user: %w", err)
	}
	u.Gender = models.Gender(gender)
	return &u, nil
}

// InsertUser creates a new enrolled user. Called only from the enrollment
// pipeline (spec.md §4.4 step "issued"). It runs as a single statement on
// the pool; the enrollment session's state update that follows is a
// separate statement, not part of the same transaction.
func (s *PostgresStore) InsertUser(ctx context.Context, u *models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, pn_hash, gender, birth_year, region_codes, device_key_thumbprint, enrolled_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.PNHash, string(u.Gender), u.BirthYear, u.RegionCodes,
		u.DeviceKeyThumbprint, u.EnrolledAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db: insert user: %w", err)
	}
	return nil
}

// UpdateUserOnReEnrollment refreshes the mutable fields of an existing user
// record when the same personal number re-enrolls on a new device
// (spec.md §9 Open Question: re-enrollment is allowed). The new device
// thumbprint changes the voter secret that nullifiers for later votes are
// derived from; nullifiers already stored are not touched.
func (s *PostgresStore) UpdateUserOnReEnrollment(ctx context.Context, u *models.User) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET gender = $2, birth_year = $3, region_codes = $4, device_key_thumbprint = $5, updated_at = $6
		WHERE id = $1`,
		u.ID, string(u.Gender), u.BirthYear, u.RegionCodes, u.DeviceKeyThumbprint, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db: update user: %w", err)
	}
	return nil
}
