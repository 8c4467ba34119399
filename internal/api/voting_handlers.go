package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/evoting/core/internal/models"
	"github.com/evoting/core/internal/session"
	"github.com/evoting/core/internal/voting"
	"github.com/evoting/core/internal/workers"
	"github.com/gin-gonic/gin"
)

type castVoteRequest struct {
	Nonce               string `json:"nonce" binding:"required"`
	OptionID            string `json:"optionId"`
	SurveyBlob          string `json:"surveyBlob"` // base64, mutually exclusive with OptionID
	Attestation         string `json:"attestation" binding:"required"` // base64, the device-signed MAC
	DeviceKeyThumbprint string `json:"deviceKeyThumbprint" binding:"required"`
	TimestampBucket     int64  `json:"timestampBucket" binding:"required"`
	ZKProof             string `json:"proof"` // base64, optional
}

type castVoteResponse struct {
	ChainSequence int64  `json:"chainSeq"`
	ChainHash     string `json:"txHash"`
}

// handleCastVote implements POST /polls/{id}/vote (spec.md §6, §4.7). The
// nullifier is never accepted from the client — it is always recomputed
// server-side from the stored voter record's pnHash and device thumbprint, since
// trusting a client-supplied nullifier would let a voter forge one for an
// option they never actually chose.
func (h *Handler) handleCastVote(c *gin.Context) {
	pollID := c.Param("id")
	claims := requireClaims(c)

	var req castVoteRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.OptionID == "" && req.SurveyBlob == "" {
		fail(c, errValidation("either optionId or surveyBlob is required"))
		return
	}

	ctx := c.Request.Context()

	if err := h.d.Nonces.Consume(ctx, claims.DeviceKeyThumbprint, session.PurposeVote, req.Nonce); err != nil {
		fail(c, err)
		return
	}

	poll, err := h.d.Store.PollByID(ctx, pollID)
	if err != nil {
		fail(c, err)
		return
	}
	voter, err := h.d.Store.UserByID(ctx, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	attestation, err := base64.StdEncoding.DecodeString(req.Attestation)
	if err != nil {
		fail(c, errValidation("attestation must be base64-encoded"))
		return
	}
	var surveyBlob []byte
	if req.SurveyBlob != "" {
		surveyBlob, err = base64.StdEncoding.DecodeString(req.SurveyBlob)
		if err != nil {
			fail(c, errValidation("surveyBlob must be base64-encoded"))
			return
		}
	}
	var proof []byte
	if req.ZKProof != "" {
		proof, err = base64.StdEncoding.DecodeString(req.ZKProof)
		if err != nil {
			fail(c, errValidation("proof must be base64-encoded"))
			return
		}
	}

	result, err := h.d.Voting.Cast(ctx, voting.CastInput{
		Poll:                 *poll,
		Voter:                voter,
		OptionID:             req.OptionID,
		SurveyBlob:           surveyBlob,
		AttestationPayload:   attestation,
		DeviceThumbprintHash: req.DeviceKeyThumbprint,
		NonceUsed:            req.Nonce,
		TimestampBucket:      req.TimestampBucket,
		ZKProof:              proof,
	})
	if err != nil {
		fail(c, err)
		return
	}

	if h.d.Hub != nil {
		if head, headErr := h.d.Store.ChainHead(ctx); headErr == nil {
			if payload, mErr := encodeChainHead(head); mErr == nil {
				h.d.Hub.Broadcast(payload)
			}
		}
	}

	if poll.Reward != nil {
		workers.DispatchRewardAsync(h.d.Rewards, pollID, *poll.Reward)
	}

	c.JSON(http.StatusOK, castVoteResponse{ChainSequence: result.ChainSequence, ChainHash: result.ChainHash})
}

func encodeChainHead(e *models.AuditChainEntry) ([]byte, error) {
	return json.Marshal(e)
}
