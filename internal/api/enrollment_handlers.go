package api

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/evoting/core/internal/enrollment"
	"github.com/evoting/core/internal/models"
	"github.com/gin-gonic/gin"
)

type enrollmentSessionResponse struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	ExpiresAt string `json:"expiresAt"`
}

// handleStartEnrollment implements a supplemented start step ahead of
// spec.md §6's compressed "POST /enrollment/document" entry — the engine's
// state machine (internal/enrollment.Engine) needs an open session before
// any document can be submitted.
func (h *Handler) handleStartEnrollment(c *gin.Context) {
	var req struct {
		DeviceID string `json:"deviceId" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	es, err := h.d.Enrollment.Start(c.Request.Context(), req.DeviceID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, enrollmentSessionResponse{
		SessionID: es.ID, State: string(es.State), ExpiresAt: es.ExpiresAt.UTC().Format(timeLayout),
	})
}

type documentRequest struct {
	SessionID      string `json:"sessionId" binding:"required"`
	Payload        string `json:"payload" binding:"required"` // base64-encoded raw document bytes
	PersonalNumber string `json:"personalNumber" binding:"required"`
	Gender         string `json:"gender"`
	BirthYear      int    `json:"birthYear" binding:"required"`
	Nationality    string `json:"nationality"`
}

// handleEnrollDocument implements POST /enrollment/document (spec.md §6).
func (h *Handler) handleEnrollDocument(c *gin.Context) {
	var req documentRequest
	if !bindJSON(c, &req) {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		fail(c, errValidation("payload must be base64-encoded"))
		return
	}

	gender := models.Gender(req.Gender)
	if gender == "" {
		gender = models.GenderAny
	}

	es, err := h.d.Enrollment.SubmitDocument(c.Request.Context(), req.SessionID, raw, req.PersonalNumber, gender, req.BirthYear, req.Nationality)
	if err != nil {
		h.recordBiometricFailure(c, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollmentSessionResponse{SessionID: es.ID, State: string(es.State), ExpiresAt: es.ExpiresAt.UTC().Format(timeLayout)})
}

type livenessRequest struct {
	SessionID   string `json:"sessionId" binding:"required"`
	SelfieVideo string `json:"selfieVideo" binding:"required"` // base64
}

// handleEnrollLiveness implements the liveness sub-step the engine's state
// machine requires between document_ok and matched; spec.md §6 folds this
// into "verify-biometrics" conceptually but the engine models it as its
// own transition so a rejected liveness check can be retried without
// re-uploading the document.
func (h *Handler) handleEnrollLiveness(c *gin.Context) {
	var req livenessRequest
	if !bindJSON(c, &req) {
		return
	}
	video, err := base64.StdEncoding.DecodeString(req.SelfieVideo)
	if err != nil {
		fail(c, errValidation("selfieVideo must be base64-encoded"))
		return
	}

	es, err := h.d.Enrollment.SubmitLiveness(c.Request.Context(), req.SessionID, video)
	if err != nil {
		h.recordBiometricFailure(c, err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollmentSessionResponse{SessionID: es.ID, State: string(es.State), ExpiresAt: es.ExpiresAt.UTC().Format(timeLayout)})
}

type verifyBiometricsRequest struct {
	SessionID     string `json:"sessionId" binding:"required"`
	DocumentImage string `json:"documentImage" binding:"required"` // base64
	SelfieFrame   string `json:"selfieFrame" binding:"required"`   // base64
	DeviceKeyThumbprint string `json:"deviceKeyThumbprint" binding:"required"`
}

type credentialResponse struct {
	UserID         string `json:"userId"`
	SessionToken   string `json:"sessionToken"`
	AttestationKey string `json:"attestationKey"` // device must key future vote attestation MACs with this
}

// handleVerifyBiometrics implements POST /enrollment/verify-biometrics
// (spec.md §6): face match, then credential issuance on success.
func (h *Handler) handleVerifyBiometrics(c *gin.Context) {
	var req verifyBiometricsRequest
	if !bindJSON(c, &req) {
		return
	}
	docImg, err := base64.StdEncoding.DecodeString(req.DocumentImage)
	if err != nil {
		fail(c, errValidation("documentImage must be base64-encoded"))
		return
	}
	selfie, err := base64.StdEncoding.DecodeString(req.SelfieFrame)
	if err != nil {
		fail(c, errValidation("selfieFrame must be base64-encoded"))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.d.Enrollment.SubmitFaceMatch(ctx, req.SessionID, docImg, selfie); err != nil {
		h.recordBiometricFailure(c, err)
		fail(c, err)
		return
	}

	user, err := h.d.Enrollment.Issue(ctx, req.SessionID, req.DeviceKeyThumbprint)
	if err != nil {
		fail(c, err)
		return
	}

	token, err := h.d.Tokens.Issue(user.ID, user.PNHash, user.DeviceKeyThumbprint)
	if err != nil {
		fail(c, err)
		return
	}

	resp := credentialResponse{UserID: user.ID, SessionToken: token}
	if h.d.DeviceHash != nil {
		resp.AttestationKey = h.d.DeviceHash.Hash(user.DeviceKeyThumbprint)
	}
	c.JSON(http.StatusOK, resp)
}

// recordBiometricFailure reports a Shield risk signal for the caller's IP
// when err is one of the engine's biometric-rejection sentinels (spec.md
// §4.9 step 3: biometric fail → +25). Non-biometric errors (expired
// session, wrong state) are not signals of abuse and are left alone.
func (h *Handler) recordBiometricFailure(c *gin.Context, err error) {
	if h.d.Shield == nil {
		return
	}
	if errors.Is(err, enrollment.ErrDocumentRejected) || errors.Is(err, enrollment.ErrLivenessRejected) || errors.Is(err, enrollment.ErrFaceMatchRejected) {
		h.d.Shield.RecordSignal(c.Request.Context(), c.ClientIP(), true, false)
	}
}
