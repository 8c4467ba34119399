// Package ledger is the client for the external anchor ledger that the
// audit chain periodically submits batched chain hashes to. Its internals
// (which chain, which consensus) are an explicit Non-goal — this package
// only implements the submission contract, guarded by a circuit breaker so
// a slow or down ledger never blocks vote casting (anchoring is
// post-commit, fire-and-forget per spec.md §4.9).
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/evoting/core/internal/circuitbreaker"
)

// AnchorBatch is one submission: a contiguous range of audit chain hashes.
type AnchorBatch struct {
	FromSequence int64    `json:"fromSequence"`
	ToSequence   int64    `json:"toSequence"`
	Hashes       []string `json:"hashes"`
}

// AnchorReceipt is the upstream ledger's acknowledgement, stored back onto
// the corresponding audit_chain rows.
type AnchorReceipt struct {
	TransactionID string `json:"transactionId"`
	BlockRef      string `json:"blockRef"`
}

// Client is the interface background workers depend on.
type Client interface {
	SubmitAnchor(ctx context.Context, batch AnchorBatch) (*AnchorReceipt, error)
}

// HTTPClient is the real submission client.
type HTTPClient struct {
	baseURL    string
	privateKey string
	http       *http.Client
	breaker    *circuitbreaker.Breaker
}

// New builds an HTTPClient. privateKey signs outbound submissions at the
// transport layer (left to the upstream ledger's own auth scheme — this
// client only forwards it as a bearer credential).
func New(baseURL, privateKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		privateKey: privateKey,
		http:       &http.Client{Timeout: 15 * time.Second},
		breaker:    circuitbreaker.Default(),
	}
}

// BreakerState reports the submission circuit breaker's current state for
// the aggregate health endpoint.
func (c *HTTPClient) BreakerState() string { return c.breaker.StateName() }

// SubmitAnchor submits a batch of chain hashes for external anchoring.
func (c *HTTPClient) SubmitAnchor(ctx context.Context, batch AnchorBatch) (*AnchorReceipt, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal batch: %w", err)
	}

	var out AnchorReceipt
	err = c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/anchors", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("ledger: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.privateKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.privateKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("ledger: request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("ledger: upstream status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
