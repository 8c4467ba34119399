package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/evoting/core/internal/models"
	"github.com/jackc/pgx/v5"
)

// CreatePoll inserts a poll together with its options and/or survey
// questions in a single transaction, so a poll can never persist with some
// of its children missing (spec.md §4.3's atomicity requirement).
func (s *PostgresStore) CreatePoll(ctx context.Context, p *models.Poll, opts []models.PollOption, questions []models.SurveyQuestion) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin create poll: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertPollTx(ctx, tx, p); err != nil {
		return err
	}
	if err := insertPollOptionsTx(ctx, tx, opts); err != nil {
		return err
	}
	if err := insertSurveyQuestionsTx(ctx, tx, questions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertPollTx(ctx context.Context, tx pgx.Tx, p *models.Poll) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO polls
			(id, title, description, poll_type, status, start_at, end_at,
			 audience_gender, audience_regions, audience_min_age, audience_max_age,
			 min_k_anonymity, reward_enabled, reward_amount, reward_asset,
			 published_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		p.ID, p.Title, p.Description, string(p.Type), string(p.Status), p.StartAt, p.EndAt,
		string(p.Audience.Gender), p.Audience.Regions, p.Audience.MinAge, p.Audience.MaxAge,
		p.MinKAnonymity, rewardEnabled(p.Reward), rewardAmount(p.Reward), rewardAsset(p.Reward),
		p.PublishedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db: insert poll: %w", err)
	}
	return nil
}

func rewardEnabled(r *models.RewardConfig) bool { return r != nil && r.Enabled }
func rewardAmount(r *models.RewardConfig) int64 {
	if r == nil {
		return 0
	}
	return r.Amount
}
func rewardAsset(r *models.RewardConfig) string {
	if r == nil {
		return ""
	}
	return r.Asset
}

// insertPollOptionsTx batch-inserts the ordered options of an
// election/referendum poll on tx.
func insertPollOptionsTx(ctx context.Context, tx pgx.Tx, opts []models.PollOption) error {
	for _, o := range opts {
		_, err := tx.Exec(ctx, `
			INSERT INTO poll_options (id, poll_id, label, position) VALUES ($1,$2,$3,$4)`,
			o.ID, o.PollID, o.Label, o.Position)
		if err != nil {
			return fmt.Errorf("db: insert poll option: %w", err)
		}
	}
	return nil
}

// insertSurveyQuestionsTx batch-inserts the ordered questions (and their
// options) of a survey poll on tx.
func insertSurveyQuestionsTx(ctx context.Context, tx pgx.Tx, questions []models.SurveyQuestion) error {
	for _, q := range questions {
		_, err := tx.Exec(ctx, `
			INSERT INTO survey_questions (id, poll_id, prompt, position) VALUES ($1,$2,$3,$4)`,
			q.ID, q.PollID, q.Prompt, q.Position)
		if err != nil {
			return fmt.Errorf("db: insert survey question: %w", err)
		}
		for _, o := range q.Options {
			_, err := tx.Exec(ctx, `
				INSERT INTO question_options (id, question_id, label, position) VALUES ($1,$2,$3,$4)`,
				o.ID, o.QuestionID, o.Label, o.Position)
			if err != nil {
				return fmt.Errorf("db: insert question option: %w", err)
			}
		}
	}
	return nil
}

// PollByID loads a poll without its options/questions.
func (s *PostgresStore) PollByID(ctx context.Context, id string) (*models.Poll, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, description, poll_type, status, start_at, end_at,
		       audience_gender, audience_regions, audience_min_age, audience_max_age,
		       min_k_anonymity, reward_enabled, reward_amount, reward_asset,
		       published_at, created_at, updated_at
		FROM polls WHERE id = $1`, id)
	return scanPoll(row)
}

func scanPoll(row pgx.Row) (*models.Poll, error) {
	var p models.Poll
	var pollType, status, gender string
	var rewardEnabled bool
	var rewardAmount int64
	var rewardAsset string
	err := row.Scan(&p.ID, &p.Title, &p.Description, &pollType, &status, &p.StartAt, &p.EndAt,
		&gender, &p.Audience.Regions, &p.Audience.MinAge, &p.Audience.MaxAge,
		&p.MinKAnonymity, &rewardEnabled, &rewardAmount, &rewardAsset,
		&p.PublishedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: scan poll: %w", err)
	}
	p.Type = models.PollType(pollType)
	p.Status = models.PollStatus(status)
	p.Audience.Gender = models.Gender(gender)
	if rewardEnabled || rewardAmount != 0 || rewardAsset != "" {
		p.Reward = &models.RewardConfig{Enabled: rewardEnabled, Amount: rewardAmount, Asset: rewardAsset}
	}
	return &p, nil
}

// ListActivePolls returns polls currently open for voting, newest first.
func (s *PostgresStore) ListActivePolls(ctx context.Context) ([]models.Poll, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, poll_type, status, start_at, end_at,
		       audience_gender, audience_regions, audience_min_age, audience_max_age,
		       min_k_anonymity, reward_enabled, reward_amount, reward_asset,
		       published_at, created_at, updated_at
		FROM polls WHERE status = 'active' ORDER BY start_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("db: list active polls: %w", err)
	}
	defer rows.Close()

	var out []models.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// PollOptionsByPollID returns the ordered options of an election/referendum poll.
func (s *PostgresStore) PollOptionsByPollID(ctx context.Context, pollID string) ([]models.PollOption, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, poll_id, label, position FROM poll_options WHERE poll_id = $1 ORDER BY position`, pollID)
	if err != nil {
		return nil, fmt.Errorf("db: list poll options: %w", err)
	}
	defer rows.Close()

	var out []models.PollOption
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Label, &o.Position); err != nil {
			return nil, fmt.Errorf("db: scan poll option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdatePollStatus transitions a poll's lifecycle status (spec.md §4.5's
// scheduled->active->ended sweep, run by a background worker).
func (s *PostgresStore) UpdatePollStatus(ctx context.Context, id string, status models.PollStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE polls SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("db: update poll status: %w", err)
	}
	return nil
}

// PublishPoll marks a poll published, recording the timestamp used to
// compute the audience size estimate warning (spec.md §4.5).
func (s *PostgresStore) PublishPoll(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE polls SET status = 'scheduled', published_at = now(), updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db: publish poll: %w", err)
	}
	return nil
}

// PollsNeedingTransition returns ids of scheduled polls whose start_at has
// passed, and active polls whose end_at has passed, for the status-sweep
// worker.
func (s *PostgresStore) PollsNeedingTransition(ctx context.Context) (toActivate []string, toEnd []string, err error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, status FROM polls
		WHERE (status = 'scheduled' AND start_at <= now())
		   OR (status = 'active' AND end_at <= now())`)
	if err != nil {
		return nil, nil, fmt.Errorf("db: poll transitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, nil, fmt.Errorf("db: scan poll transition: %w", err)
		}
		if status == "scheduled" {
			toActivate = append(toActivate, id)
		} else {
			toEnd = append(toEnd, id)
		}
	}
	return toActivate, toEnd, rows.Err()
}
