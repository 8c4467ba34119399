package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type chainEntryResponse struct {
	Sequence        int64   `json:"sequence"`
	VoteID          string  `json:"voteId"`
	PollID          string  `json:"pollId"`
	Hash            string  `json:"hash"`
	PrevHash        string  `json:"prevHash"`
	TimestampBucket int64   `json:"timestampBucket"`
	AnchorReceipt   *string `json:"anchorReceipt,omitempty"`
	Verified        bool    `json:"verified"`
}

// handleChainEntry implements GET /public/chain/{n} (spec.md §4.12): the
// entry plus its own linkage proof (hash recomputed and compared against
// what is stored, so a caller never has to trust the response alone).
func (h *Handler) handleChainEntry(c *gin.Context) {
	seq, ok := parseSequence(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	entry, err := h.d.Store.ChainEntryBySequence(ctx, seq)
	if err != nil {
		fail(c, err)
		return
	}

	verified := true
	if verifyErr := h.d.ChainVerif.VerifyEntry(ctx, seq); verifyErr != nil {
		verified = false
	}

	c.JSON(http.StatusOK, chainEntryResponse{
		Sequence: entry.Sequence, VoteID: entry.VoteID, PollID: entry.PollID,
		Hash: entry.Hash, PrevHash: entry.PrevHash, TimestampBucket: entry.TimestampBucket,
		AnchorReceipt: entry.AnchorReceipt, Verified: verified,
	})
}

// handleChainHead implements GET /public/chain/head (spec.md §4.12):
// sequence, hash, and the last anchor receipt recorded, with no
// verification needed since there's nothing later to link it to.
func (h *Handler) handleChainHead(c *gin.Context) {
	ctx := c.Request.Context()
	entry, err := h.d.Store.ChainHead(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chainEntryResponse{
		Sequence: entry.Sequence, VoteID: entry.VoteID, PollID: entry.PollID,
		Hash: entry.Hash, PrevHash: entry.PrevHash, TimestampBucket: entry.TimestampBucket,
		AnchorReceipt: entry.AnchorReceipt, Verified: true,
	})
}

// handleRegionCatalog serves the read-only region list (SPEC_FULL.md §D
// supplemented feature).
func (h *Handler) handleRegionCatalog(c *gin.Context) {
	regions, err := h.d.Store.AllRegions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, regions)
}

// handleHealth aggregates DB and cache reachability, the direct
// descendant of the teacher's handleHealth in internal/api/routes.go.
func (h *Handler) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	status := gin.H{"status": "ok"}

	if _, err := h.d.Store.ChainLength(ctx); err != nil {
		status["status"] = "degraded"
		status["db"] = err.Error()
	} else {
		status["db"] = "ok"
	}

	if _, _, err := h.d.Cache.Get(ctx, "healthcheck:probe"); err != nil {
		status["status"] = "degraded"
		status["cache"] = err.Error()
	} else {
		status["cache"] = "ok"
	}

	if h.d.Biometric != nil {
		status["biometricCircuit"] = h.d.Biometric.BreakerState()
	}
	if h.d.Ledger != nil {
		status["ledgerCircuit"] = h.d.Ledger.BreakerState()
	}

	c.JSON(http.StatusOK, status)
}
