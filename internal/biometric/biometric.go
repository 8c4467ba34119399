// Package biometric is the client for the external liveness/face-match
// verifier named in spec.md §4.4. Its internals (the actual face-matching
// model) are an explicit Non-goal — this package only implements the
// contract: opaque image bytes in, a score and pass/fail out, guarded by a
// circuit breaker per spec.md §5.
package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/evoting/core/internal/circuitbreaker"
)

// DocumentCheckResult is returned by VerifyDocument.
type DocumentCheckResult struct {
	Passed      bool    `json:"passed"`
	DocumentType string `json:"documentType"`
	ExtractedBirthYear int `json:"extractedBirthYear"`
	ExtractedGender    string `json:"extractedGender"`
}

// LivenessResult is returned by VerifyLiveness.
type LivenessResult struct {
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
}

// FaceMatchResult is returned by MatchFace.
type FaceMatchResult struct {
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
}

// Verifier is the interface enrollment depends on, so the HTTP client
// below can be swapped for a test double without touching call sites.
type Verifier interface {
	VerifyDocument(ctx context.Context, documentImage []byte) (*DocumentCheckResult, error)
	VerifyLiveness(ctx context.Context, selfieVideo []byte) (*LivenessResult, error)
	MatchFace(ctx context.Context, documentImage, selfieFrame []byte) (*FaceMatchResult, error)
	Healthy(ctx context.Context) bool
}

// Client is the real HTTP-backed Verifier.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

// New builds a Client. timeout applies to verify calls; health checks use a
// fixed 3s timeout per spec.md §5.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: circuitbreaker.Default(),
	}
}

// BreakerState reports the verifier circuit breaker's current state for
// the aggregate health endpoint.
func (c *Client) BreakerState() string { return c.breaker.StateName() }

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("biometric: marshal request: %w", err)
	}

	return c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("biometric: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("biometric: request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("biometric: upstream status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			// Client-side rejection (e.g. bad image) is not an upstream
			// health failure — don't trip the breaker on it.
			return &rejection{status: resp.StatusCode}
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

type rejection struct{ status int }

func (r *rejection) Error() string { return fmt.Sprintf("biometric: rejected (status %d)", r.status) }

// VerifyDocument submits a document image for OCR/authenticity checks.
func (c *Client) VerifyDocument(ctx context.Context, documentImage []byte) (*DocumentCheckResult, error) {
	var out DocumentCheckResult
	if err := c.post(ctx, "/v1/document", map[string]string{"image": encode(documentImage)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyLiveness submits a selfie video/frame sequence for liveness detection.
func (c *Client) VerifyLiveness(ctx context.Context, selfieVideo []byte) (*LivenessResult, error) {
	var out LivenessResult
	if err := c.post(ctx, "/v1/liveness", map[string]string{"video": encode(selfieVideo)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MatchFace compares a document photo against a live selfie frame.
func (c *Client) MatchFace(ctx context.Context, documentImage, selfieFrame []byte) (*FaceMatchResult, error) {
	var out FaceMatchResult
	body := map[string]string{"documentImage": encode(documentImage), "selfieFrame": encode(selfieFrame)}
	if err := c.post(ctx, "/v1/match", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy reports whether the upstream verifier responds within 3s.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func encode(b []byte) string {
	return fmt.Sprintf("%x", b)
}
