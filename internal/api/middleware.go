package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/evoting/core/internal/ratelimit"
	"github.com/evoting/core/internal/session"
	"github.com/evoting/core/pkg/apierr"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// contextUserIDKey etc. are gin context keys set by AuthMiddleware.
const (
	ctxClaims = "claims"
)

// corsMiddleware mirrors the teacher's ALLOWED_ORIGINS-driven handler in
// internal/api/routes.go, generalized from a single wildcard-or-env origin
// to a configured allow-list since this API carries session cookies/
// bearer tokens that a wildcard origin cannot safely pair with.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := map[string]bool{}
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// AuthMiddleware validates the session JWT and stashes its claims in the
// gin context for handlers to read via requireClaims. Generalizes the
// teacher's static bearer-token AuthMiddleware (internal/api/auth.go) from
// one shared secret to per-user signed, expiring tokens.
func AuthMiddleware(tokens *session.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			fail(c, session.ErrTokenInvalid)
			return
		}

		claims, err := tokens.Verify(parts[1])
		if err != nil {
			fail(c, err)
			return
		}

		c.Set(ctxClaims, claims)
		c.Next()
	}
}

func requireClaims(c *gin.Context) *session.Claims {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*session.Claims)
	return claims
}

// rateLimitMiddleware enforces policy against whichever identity fn
// extracts from the request, generalizing the teacher's fixed per-IP
// token bucket (internal/api/ratelimit.go) into a per-route-class policy
// over a shared cache (see internal/ratelimit).
func rateLimitMiddleware(limiter *ratelimit.Limiter, policy ratelimit.Policy, identity func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := limiter.Allow(c.Request.Context(), policy, identity(c))
		if err != nil {
			fail(c, err)
			return
		}
		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter / time.Second)
			c.Header("Retry-After", decision.RetryAfter.String())
			apiErr := apierr.RateLimited(retryAfter)
			c.AbortWithStatusJSON(apiErr.StatusCode, apiErr.Envelope())
			return
		}
		c.Next()
	}
}

func byIP(c *gin.Context) string { return c.ClientIP() }

func byDeviceID(c *gin.Context) string {
	var body struct {
		DeviceID string `json:"deviceId"`
	}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err == nil && body.DeviceID != "" {
		return body.DeviceID
	}
	return c.ClientIP()
}

func byUser(c *gin.Context) string {
	if claims := requireClaims(c); claims != nil {
		return claims.UserID
	}
	return c.ClientIP()
}
