package api

import (
	"github.com/evoting/core/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the full gin engine: public routes, challenge/
// enrollment routes (rate-limited, unauthenticated), and session-protected
// routes, grounded on the teacher's SetupRouter (internal/api/routes.go)
// group-per-concern layout.
func NewRouter(d *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(d.AllowedOrigins))

	h := newHandler(d)

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/regions", h.handleRegionCatalog)
		pub.GET("/public/chain/head", h.handleChainHead)
		pub.GET("/public/chain/:n", h.handleChainEntry)
		pub.GET("/public/polls/:id/results", h.handlePollResults)
		pub.GET("/stream", d.Hub.Subscribe)
	}

	// Login/enrollment routes have no session yet, so they are
	// rate-limited by device id rather than by user (spec.md §4.10).
	challenge := r.Group("/api/v1/auth")
	challenge.Use(rateLimitMiddleware(d.Limiter, ratelimit.PolicyLogin, byDeviceID))
	{
		challenge.POST("/challenge", h.handleChallenge)
	}

	enroll := r.Group("/api/v1/enrollment")
	enroll.Use(rateLimitMiddleware(d.Limiter, ratelimit.PolicyEnrollment, byDeviceID))
	{
		enroll.POST("/sessions", h.handleStartEnrollment)
		enroll.POST("/document", h.handleEnrollDocument)
		enroll.POST("/liveness", h.handleEnrollLiveness)
		enroll.POST("/verify-biometrics", h.handleVerifyBiometrics)
	}

	// Session-protected routes: auth first, then the voting-class rate
	// limit, mirroring the teacher's auth.Use(...) / auth.Use(rateLimiter)
	// middleware stacking order.
	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware(d.Tokens))
	{
		protected.GET("/polls", h.handleListEligiblePolls)
		protected.GET("/analytics/polls/:id/results", h.handlePollResults)

		vote := protected.Group("")
		vote.Use(rateLimitMiddleware(d.Limiter, ratelimit.PolicyVoting, byUser))
		vote.POST("/polls/:id/vote", h.handleCastVote)
	}

	// Admin routes are exempt from global rate limits (spec.md §4.10);
	// PolicyAdmin.IsExempt() makes rateLimitMiddleware a no-op here, kept
	// only so every route passes through the same middleware shape.
	admin := r.Group("/api/v1/admin")
	admin.Use(AuthMiddleware(d.Tokens))
	admin.Use(rateLimitMiddleware(d.Limiter, ratelimit.PolicyAdmin, byUser))
	{
		admin.POST("/polls", h.handleCreatePoll)
		admin.POST("/polls/:id/publish", h.handlePublishPoll)
		admin.POST("/risk/flag-ip", h.handleFlagIP)
	}

	return r
}
