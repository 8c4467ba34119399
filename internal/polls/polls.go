// Package polls implements C6: poll CRUD, the publication gate, and
// eligibility matching. Grounded on the input-validation style of the
// teacher's handleStartScan handler (reject early, one concern per check).
package polls

import (
	"context"
	"errors"
	"time"

	"github.com/evoting/core/internal/db"
	"github.com/evoting/core/internal/models"
	"github.com/google/uuid"
)

const defaultMinKAnonymity = 30

var (
	ErrInvalidWindow      = errors.New("polls: end must be after start")
	ErrNotEnoughOptions   = errors.New("polls: election/referendum polls need at least 2 options")
	ErrNotEnoughQuestions = errors.New("polls: survey polls need at least 1 question")
	ErrAlreadyPublished   = errors.New("polls: poll is not a draft")
)

// Service wraps the persistence layer with poll-level business rules.
type Service struct {
	store *db.PostgresStore
}

// New builds a Service.
func New(store *db.PostgresStore) *Service {
	return &Service{store: store}
}

// CreateInput bundles the fields needed to create a draft poll.
type CreateInput struct {
	Title       string
	Description string
	Type        models.PollType
	StartAt     time.Time
	EndAt       time.Time
	Audience    models.AudienceRules
	Options     []string
	Questions   []SurveyQuestionInput
	Reward      *models.RewardConfig
}

// SurveyQuestionInput describes one survey question to create.
type SurveyQuestionInput struct {
	Prompt  string
	Options []string
}

// Create validates and persists a new draft poll with its children.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Poll, error) {
	if !in.EndAt.After(in.StartAt) {
		return nil, ErrInvalidWindow
	}
	if in.Type != models.PollSurvey && len(in.Options) < 2 {
		return nil, ErrNotEnoughOptions
	}
	if in.Type == models.PollSurvey && len(in.Questions) < 1 {
		return nil, ErrNotEnoughQuestions
	}

	now := time.Now()
	p := &models.Poll{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Description:   in.Description,
		Type:          in.Type,
		Status:        models.PollDraft,
		StartAt:       in.StartAt,
		EndAt:         in.EndAt,
		Audience:      in.Audience,
		MinKAnonymity: defaultMinKAnonymity,
		Reward:        in.Reward,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	var opts []models.PollOption
	if len(in.Options) > 0 {
		opts = make([]models.PollOption, len(in.Options))
		for i, label := range in.Options {
			opts[i] = models.PollOption{ID: uuid.NewString(), PollID: p.ID, Label: label, Position: i}
		}
	}

	var questions []models.SurveyQuestion
	if len(in.Questions) > 0 {
		questions = make([]models.SurveyQuestion, len(in.Questions))
		for i, q := range in.Questions {
			questionID := uuid.NewString()
			qopts := make([]models.QuestionOption, len(q.Options))
			for j, label := range q.Options {
				qopts[j] = models.QuestionOption{ID: uuid.NewString(), QuestionID: questionID, Label: label, Position: j}
			}
			questions[i] = models.SurveyQuestion{ID: questionID, PollID: p.ID, Prompt: q.Prompt, Position: i, Options: qopts}
		}
	}

	if err := s.store.CreatePoll(ctx, p, opts, questions); err != nil {
		return nil, err
	}
	return p, nil
}

// PublicationCheck is the publication gate's outcome (spec.md §4.6).
type PublicationCheck struct {
	Allowed         bool
	Warning         string
	EstimatedAudience int
}

// CheckPublication validates a draft against the publication gate. The
// caller supplies an audience size estimate (from a separate demographic
// query) since estimating audience size is not this package's concern.
func (s *Service) CheckPublication(ctx context.Context, p *models.Poll, estimatedAudience int) (*PublicationCheck, error) {
	if p.Status != models.PollDraft {
		return nil, ErrAlreadyPublished
	}
	if !p.EndAt.After(p.StartAt) {
		return nil, ErrInvalidWindow
	}

	if p.Type != models.PollSurvey {
		opts, err := s.store.PollOptionsByPollID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(opts) < 2 {
			return nil, ErrNotEnoughOptions
		}
	}

	check := &PublicationCheck{Allowed: true, EstimatedAudience: estimatedAudience}
	if estimatedAudience < p.MinKAnonymity {
		check.Warning = "estimated audience is below minimum k-anonymity; results will remain suppressed until k is reached"
	}
	return check, nil
}

// Publish marks a draft poll scheduled after a successful publication check.
func (s *Service) Publish(ctx context.Context, pollID string) error {
	return s.store.PublishPoll(ctx, pollID)
}

// EligiblePolls returns the currently active polls a user is eligible for.
func (s *Service) EligiblePolls(ctx context.Context, u *models.User) ([]models.Poll, error) {
	active, err := s.store.ListActivePolls(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var out []models.Poll
	for _, p := range active {
		if p.Audience.Match(u, now) {
			out = append(out, p)
		}
	}
	return out, nil
}
