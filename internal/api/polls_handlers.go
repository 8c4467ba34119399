package api

import (
	"net/http"
	"time"

	"github.com/evoting/core/internal/models"
	"github.com/evoting/core/internal/polls"
	"github.com/gin-gonic/gin"
)

type pollView struct {
	Poll      models.Poll             `json:"poll"`
	Options   []models.PollOption     `json:"options,omitempty"`
	Questions []models.SurveyQuestion `json:"questions,omitempty"`
}

// handleListEligiblePolls implements GET /polls (spec.md §6): the
// currently active polls the authenticated user's persistent record makes
// them eligible for, re-evaluated on every call (spec.md §4.5).
func (h *Handler) handleListEligiblePolls(c *gin.Context) {
	claims := requireClaims(c)
	ctx := c.Request.Context()

	user, err := h.d.Store.UserByID(ctx, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	eligible, err := h.d.Polls.EligiblePolls(ctx, user)
	if err != nil {
		fail(c, err)
		return
	}

	views := make([]pollView, 0, len(eligible))
	for _, p := range eligible {
		v := pollView{Poll: p}
		if p.Type == models.PollSurvey {
			// The eligible poll list returns only the poll shell for
			// surveys; no route in this API returns their questions.
		} else {
			opts, err := h.d.Store.PollOptionsByPollID(ctx, p.ID)
			if err != nil {
				fail(c, err)
				return
			}
			v.Options = opts
		}
		views = append(views, v)
	}

	c.JSON(http.StatusOK, views)
}

type createPollRequest struct {
	Title       string                   `json:"title" binding:"required"`
	Description string                   `json:"description"`
	Type        string                   `json:"type" binding:"required"`
	StartAt     time.Time                `json:"startAt" binding:"required"`
	EndAt       time.Time                `json:"endAt" binding:"required"`
	Audience    audienceRulesDTO         `json:"audience"`
	Options     []string                 `json:"options"`
	Questions   []surveyQuestionInputDTO `json:"questions"`
	Reward      *models.RewardConfig     `json:"reward"`
}

type audienceRulesDTO struct {
	Gender  string   `json:"gender"`
	Regions []string `json:"regions"`
	MinAge  *int     `json:"minAge"`
	MaxAge  *int     `json:"maxAge"`
}

type surveyQuestionInputDTO struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// handleCreatePoll implements the admin-only poll creation step behind
// spec.md §4.6's publication gate; this only persists the draft, it does
// not publish it (see handlePublishPoll).
func (h *Handler) handleCreatePoll(c *gin.Context) {
	var req createPollRequest
	if !bindJSON(c, &req) {
		return
	}

	questions := make([]polls.SurveyQuestionInput, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = polls.SurveyQuestionInput{Prompt: q.Prompt, Options: q.Options}
	}

	p, err := h.d.Polls.Create(c.Request.Context(), polls.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        models.PollType(req.Type),
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Audience: models.AudienceRules{
			Gender:  models.Gender(req.Audience.Gender),
			Regions: req.Audience.Regions,
			MinAge:  req.Audience.MinAge,
			MaxAge:  req.Audience.MaxAge,
		},
		Options:   req.Options,
		Questions: questions,
		Reward:    req.Reward,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"poll": p})
}

// handlePublishPoll implements the publication gate of spec.md §4.6. The
// caller (admin tooling) supplies an audience size estimate computed out
// of band since estimating it is not this package's job.
func (h *Handler) handlePublishPoll(c *gin.Context) {
	pollID := c.Param("id")
	var req struct {
		EstimatedAudience int `json:"estimatedAudience"`
	}
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	p, err := h.d.Store.PollByID(ctx, pollID)
	if err != nil {
		fail(c, err)
		return
	}

	check, err := h.d.Polls.CheckPublication(ctx, p, req.EstimatedAudience)
	if err != nil {
		fail(c, err)
		return
	}
	if !check.Allowed {
		fail(c, errValidation("poll is not eligible for publication"))
		return
	}

	if err := h.d.Polls.Publish(ctx, pollID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}
