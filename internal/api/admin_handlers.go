package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type flagIPRequest struct {
	IP string `json:"ip" binding:"required"`
}

// handleFlagIP implements the administrative half of spec.md §4.9 step 3
// ("Admin flag -> +100"): an operator reporting an IP outside the normal
// request/response cycle the Shield observes (e.g. acting on an abuse
// report). It writes straight into the same risk-score state the proxy
// reads, promoting to a block once the threshold is crossed.
func (h *Handler) handleFlagIP(c *gin.Context) {
	var req flagIPRequest
	if !bindJSON(c, &req) {
		return
	}
	if h.d.Shield == nil {
		fail(c, errValidation("risk shield is not configured on this node"))
		return
	}
	h.d.Shield.RecordSignal(c.Request.Context(), req.IP, false, true)
	c.JSON(http.StatusOK, gin.H{"flagged": req.IP})
}
