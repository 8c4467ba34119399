package api

import (
	"net/http"
	"strconv"

	"github.com/evoting/core/internal/aggregation"
	"github.com/gin-gonic/gin"
)

type resultsResponse struct {
	PollID      string               `json:"pollId"`
	ByOption    aggregation.Result   `json:"byOption"`
	Demographic map[string]aggregation.Result `json:"byDemographic,omitempty"`
	Suppressed  bool                 `json:"suppressed"`
}

// handlePollResults implements GET /analytics/polls/{id}/results and the
// public mirror GET /public/polls/{id}/results (spec.md §4.8, §4.12):
// k-anonymity cell suppression with complementary suppression, and
// optional Laplace noise when ENABLE_PRIVACY_NOISE is set.
func (h *Handler) handlePollResults(c *gin.Context) {
	pollID := c.Param("id")
	ctx := c.Request.Context()

	poll, err := h.d.Store.PollByID(ctx, pollID)
	if err != nil {
		fail(c, err)
		return
	}

	k := poll.MinKAnonymity
	if k <= 0 {
		k = h.d.MinKAnonymity
	}

	tally, err := h.d.Store.VoteTallyByOption(ctx, pollID)
	if err != nil {
		fail(c, err)
		return
	}
	if h.d.NoiseEpsilon > 0 {
		for key, count := range tally {
			tally[key] = aggregation.AddLaplaceNoise(count, h.d.NoiseEpsilon)
		}
	}
	byOption := aggregation.Aggregate(tally, k)

	demoTally, err := h.d.Store.VoteTallyByOptionAndDemographic(ctx, pollID)
	if err != nil {
		fail(c, err)
		return
	}
	byDemo := make(map[string]aggregation.Result, len(demoTally))
	for option, cells := range demoTally {
		if h.d.NoiseEpsilon > 0 {
			for key, count := range cells {
				cells[key] = aggregation.AddLaplaceNoise(count, h.d.NoiseEpsilon)
			}
		}
		byDemo[option] = aggregation.Aggregate(cells, k)
	}

	c.JSON(http.StatusOK, resultsResponse{
		PollID:      pollID,
		ByOption:    byOption,
		Demographic: byDemo,
		Suppressed:  byOption.AnyHidden,
	})
}

func parseSequence(c *gin.Context) (int64, bool) {
	seq, err := strconv.ParseInt(c.Param("n"), 10, 64)
	if err != nil {
		fail(c, errValidation("n must be a positive integer sequence"))
		return 0, false
	}
	return seq, true
}
