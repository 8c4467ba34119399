package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/evoting/core/internal/models"
	"github.com/jackc/pgx/v5"
)

// InsertEnrollmentSession creates the ephemeral record tracking an
// in-progress enrollment (spec.md §4.4).
func (s *PostgresStore) InsertEnrollmentSession(ctx context.Context, es *models.EnrollmentSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enrollment_sessions
			(id, device_id, state, gender, birth_year, nationality, liveness_score,
			 face_match_score, device_key_thumbprint, failure_count, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		es.ID, es.DeviceID, string(es.State), string(es.Gender), es.BirthYear, es.Nationality,
		es.LivenessScore, es.FaceMatchScore, es.DeviceKeyThumbprint, es.FailureCount,
		es.CreatedAt, es.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db: insert enrollment session: %w", err)
	}
	return nil
}

// EnrollmentSessionByID loads an in-progress enrollment.
func (s *PostgresStore) EnrollmentSessionByID(ctx context.Context, id string) (*models.EnrollmentSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, device_id, state, gender, birth_year, nationality, liveness_score,
		       face_match_score, device_key_thumbprint, failure_count, created_at, expires_at
		FROM enrollment_sessions WHERE id = $1`, id)

	var es models.EnrollmentSession
	var state, gender string
	err := row.Scan(&es.ID, &es.DeviceID, &state, &gender, &es.BirthYear, &es.Nationality,
		&es.LivenessScore, &es.FaceMatchScore, &es.DeviceKeyThumbprint, &es.FailureCount,
		&es.CreatedAt, &es.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: scan enrollment session: %w", err)
	}
	es.State = models.EnrollmentState(state)
	es.Gender = models.Gender(gender)
	return &es, nil
}

// UpdateEnrollmentSessionState advances the session's state machine position
// and failure counter (spec.md §4.4's bounded-retry behavior).
func (s *PostgresStore) UpdateEnrollmentSessionState(ctx context.Context, id string, state models.EnrollmentState, failureCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE enrollment_sessions SET state = $2, failure_count = $3 WHERE id = $1`,
		id, string(state), failureCount)
	if err != nil {
		return fmt.Errorf("db: update enrollment session: %w", err)
	}
	return nil
}

// UpdateEnrollmentSessionScores records biometric verification scores
// reached during the document/liveness/match steps.
func (s *PostgresStore) UpdateEnrollmentSessionScores(ctx context.Context, id string, liveness, faceMatch float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE enrollment_sessions SET liveness_score = $2, face_match_score = $3 WHERE id = $1`,
		id, liveness, faceMatch)
	if err != nil {
		return fmt.Errorf("db: update enrollment scores: %w", err)
	}
	return nil
}
