package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/evoting/core/internal/db"
	"github.com/evoting/core/internal/enrollment"
	"github.com/evoting/core/internal/polls"
	"github.com/evoting/core/internal/session"
	"github.com/evoting/core/internal/voting"
	"github.com/evoting/core/pkg/apierr"
)

func TestClassifyMapsDomainSentinels(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantCode   apierr.Code
		wantStatus int
	}{
		{"not found", db.ErrNotFound, apierr.CodeNotFound, http.StatusNotFound},
		{"nonce missing", session.ErrNonceNotFound, apierr.CodeAuth, http.StatusUnauthorized},
		{"bad token", session.ErrTokenInvalid, apierr.CodeAuth, http.StatusUnauthorized},
		{"enrollment expired", enrollment.ErrSessionExpired, apierr.CodeAuth, http.StatusUnauthorized},
		{"enrollment wrong state", enrollment.ErrWrongState, apierr.CodeValidation, http.StatusBadRequest},
		{"document rejected", enrollment.ErrDocumentRejected, apierr.CodeForbidden, http.StatusForbidden},
		{"already published", polls.ErrAlreadyPublished, apierr.CodeConflict, http.StatusConflict},
		{"not eligible", voting.ErrNotEligible, apierr.CodeNotEligible, http.StatusForbidden},
		{"already voted", voting.ErrAlreadyVoted, apierr.CodeAlreadyVoted, http.StatusConflict},
		{"duplicate nullifier", db.ErrDuplicateNullifier, apierr.CodeAlreadyVoted, http.StatusConflict},
		{"unknown", errors.New("boom"), apierr.CodeFatal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if got.Code != tc.wantCode {
				t.Errorf("code = %v, want %v", got.Code, tc.wantCode)
			}
			if got.StatusCode != tc.wantStatus {
				t.Errorf("status = %v, want %v", got.StatusCode, tc.wantStatus)
			}
		})
	}
}

func TestClassifyPassesThroughApiErrUnchanged(t *testing.T) {
	original := apierr.Validation("already a proper error")
	got := classify(original)
	if got != original {
		t.Fatalf("expected the same *apierr.Error instance to pass through, got a new one")
	}
}

func TestErrValidationProducesBadRequest(t *testing.T) {
	err := errValidation("nonce is required")
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		t.Fatalf("errValidation did not return *apierr.Error")
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %v, want %v", apiErr.StatusCode, http.StatusBadRequest)
	}
}
