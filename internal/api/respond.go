package api

import (
	"errors"
	"net/http"

	"github.com/evoting/core/internal/auditchain"
	"github.com/evoting/core/internal/db"
	"github.com/evoting/core/internal/enrollment"
	"github.com/evoting/core/internal/polls"
	"github.com/evoting/core/internal/session"
	"github.com/evoting/core/internal/voting"
	"github.com/evoting/core/pkg/apierr"
	"github.com/gin-gonic/gin"
)

// fail translates any domain error into the stable apierr envelope and
// aborts the request, mirroring the teacher's one-concern-per-middleware
// style but centralizing the mapping instead of repeating gin.H literals
// at every call site.
func fail(c *gin.Context, err error) {
	apiErr := classify(err)
	c.AbortWithStatusJSON(apiErr.StatusCode, apiErr.Envelope())
}

func classify(err error) *apierr.Error {
	if apiErr, ok := err.(*apierr.Error); ok {
		return apiErr
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		return apierr.NotFound("resource not found")
	case errors.Is(err, session.ErrNonceNotFound):
		return apierr.Auth("nonce not found, expired, or already used")
	case errors.Is(err, session.ErrTokenInvalid):
		return apierr.Auth("invalid or expired session token")
	case errors.Is(err, enrollment.ErrSessionExpired):
		return apierr.Auth("enrollment session expired")
	case errors.Is(err, enrollment.ErrWrongState):
		return apierr.Validation("operation not valid in current enrollment state")
	case errors.Is(err, enrollment.ErrDocumentRejected),
		errors.Is(err, enrollment.ErrLivenessRejected),
		errors.Is(err, enrollment.ErrFaceMatchRejected):
		e := apierr.Forbidden(apierr.CodeForbidden, err.Error())
		return e
	case errors.Is(err, polls.ErrInvalidWindow),
		errors.Is(err, polls.ErrNotEnoughOptions),
		errors.Is(err, polls.ErrNotEnoughQuestions):
		return apierr.Validation(err.Error())
	case errors.Is(err, polls.ErrAlreadyPublished):
		return apierr.Conflict(apierr.CodeConflict, err.Error())
	case errors.Is(err, voting.ErrNotEligible):
		return apierr.Forbidden(apierr.CodeNotEligible, err.Error())
	case errors.Is(err, voting.ErrPollNotActive):
		return apierr.Forbidden(apierr.CodeForbidden, err.Error())
	case errors.Is(err, voting.ErrAlreadyVoted), errors.Is(err, db.ErrDuplicateNullifier):
		return apierr.Conflict(apierr.CodeAlreadyVoted, "a ballot has already been cast for this poll")
	case errors.Is(err, voting.ErrProofRejected):
		return apierr.Forbidden(apierr.CodeForbidden, err.Error())
	case errors.Is(err, voting.ErrAttestationInvalid):
		return apierr.Auth(err.Error())
	case errors.Is(err, voting.ErrReadOnlyMode):
		return apierr.Fatal(err.Error())
	default:
		var mismatch *auditchain.ErrChainMismatch
		if errors.As(err, &mismatch) {
			return apierr.Fatal(mismatch.Error())
		}
		return apierr.Fatal("internal error")
	}
}

// errValidation is a small convenience so handlers can raise an
// apierr.Error directly without a sentinel var for every one-off check.
func errValidation(msg string) error { return apierr.Validation(msg) }

// bindJSON binds the request body, responding with a VALIDATION error on
// failure. Returns false when the caller should stop handling the request.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, apierr.Validation("malformed request body: "+err.Error()).Envelope())
		return false
	}
	return true
}
