package api

import (
	"net/http"

	"github.com/evoting/core/internal/session"
	"github.com/gin-gonic/gin"
)

type challengeRequest struct {
	DeviceID string `json:"deviceId" binding:"required"`
	Purpose  string `json:"purpose" binding:"required"`
}

type challengeResponse struct {
	Nonce     string `json:"nonce"`
	ExpiresAt string `json:"expiresAt"`
}

// handleChallenge implements POST /auth/challenge (spec.md §6, §4.5 step 1).
func (h *Handler) handleChallenge(c *gin.Context) {
	var req challengeRequest
	if !bindJSON(c, &req) {
		return
	}

	purpose := session.Purpose(req.Purpose)
	if purpose != session.PurposeVote && purpose != session.PurposeLogin {
		fail(c, errValidation("purpose must be \"vote\" or \"login\""))
		return
	}

	nonce, expiresAt, err := h.d.Nonces.Issue(c.Request.Context(), req.DeviceID, purpose)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, challengeResponse{
		Nonce:     nonce,
		ExpiresAt: expiresAt.UTC().Format(timeLayout),
	})
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"
