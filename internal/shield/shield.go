// Package shield implements C9: the edge risk-scoring reverse proxy.
// Grounded on the teacher's httputil-free in-process proxy style is absent
// from the teacher (it has no reverse proxy), so the pre-filter/forward/
// post-filter pipeline here is built from spec.md §9's redesign note
// directly, using net/http/httputil.ReverseProxy as the forwarder and the
// shared cache (in place of the teacher's process-local map in
// internal/api/ratelimit.go) for block/risk state so every Shield replica
// agrees.
package shield

import (
	"context"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evoting/core/internal/cache"
)

// Penalties for terminal response codes / signals, per spec.md §4.9 step 3.
const (
	PenaltyUnauthorized    = 15
	PenaltyRateLimited     = 20
	PenaltyBiometricFail   = 25
	PenaltyAdminFlag       = 100
	BlockThresholdDefault  = 100
	BlockTTL               = 1 * time.Hour
	SubnetClusterThreshold = 4
	SubnetScanInterval     = 60 * time.Second
)

// Shield is the reverse proxy. It holds no voter data — only IP
// aggregates in the shared cache.
type Shield struct {
	cache          *cache.Store
	proxy          *httputil.ReverseProxy
	blockThreshold int
}

// New builds a Shield forwarding to backendURL.
func New(cacheStore *cache.Store, backendURL string, blockThreshold int) (*Shield, error) {
	target, err := url.Parse(backendURL)
	if err != nil {
		return nil, err
	}
	if blockThreshold <= 0 {
		blockThreshold = BlockThresholdDefault
	}
	return &Shield{
		cache:          cacheStore,
		proxy:          httputil.NewSingleHostReverseProxy(target),
		blockThreshold: blockThreshold,
	}, nil
}

// NewSignalOnly builds a Shield with no backend proxy, for processes that
// only need to call RecordSignal (the API process shares the same Redis
// the real proxy reads block/risk state from, so a signal recorded here is
// seen by every Shield replica without a cross-process call). ServeHTTP
// must not be called on the result.
func NewSignalOnly(cacheStore *cache.Store, blockThreshold int) *Shield {
	if blockThreshold <= 0 {
		blockThreshold = BlockThresholdDefault
	}
	return &Shield{cache: cacheStore, blockThreshold: blockThreshold}
}

// ServeHTTP implements the pre-filter / forward / post-filter pipeline of
// spec.md §4.9.
func (s *Shield) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	ctx := r.Context()

	if reason, blocked, err := s.isBlocked(ctx, ip); err == nil && blocked {
		http.Error(w, "blocked: "+reason, http.StatusForbidden)
		return
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.proxy.ServeHTTP(rec, r)

	// Signal headers are set by the backend on its response (not the
	// inbound request) — the reverse proxy copies them into rec's header
	// map before WriteHeader fires, so reading them back here sees the
	// backend's verdict, not whatever the caller sent.
	s.applyPostFilter(ctx, ip, rec.status, rec.Header().Get("X-Biometric-Failure") != "", rec.Header().Get("X-Admin-Flag") != "")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Shield) isBlocked(ctx context.Context, ip string) (string, bool, error) {
	reason, found, err := s.cache.Get(ctx, "block:"+ip)
	if err != nil {
		return "", false, err
	}
	return reason, found, nil
}

// applyPostFilter increments the IP's risk score on terminal status codes
// or signal headers, promoting to a block once the threshold is reached.
func (s *Shield) applyPostFilter(ctx context.Context, ip string, status int, biometricFail, adminFlag bool) {
	penalty := 0
	switch status {
	case http.StatusUnauthorized:
		penalty += PenaltyUnauthorized
	case http.StatusTooManyRequests:
		penalty += PenaltyRateLimited
	}
	if biometricFail {
		penalty += PenaltyBiometricFail
	}
	if adminFlag {
		penalty += PenaltyAdminFlag
	}
	if penalty == 0 {
		return
	}

	score, err := s.cache.IncrBy(ctx, "risk:"+ip, int64(penalty))
	if err != nil {
		log.Printf("[shield] failed to update risk score for %s: %v", ip, err)
		return
	}

	if int(score) >= s.blockThreshold {
		reason := "risk score " + strconv.FormatInt(score, 10) + " exceeded threshold"
		if err := s.cache.Set(ctx, "block:"+ip, reason, BlockTTL); err != nil {
			log.Printf("[shield] failed to set block for %s: %v", ip, err)
			return
		}
		log.Printf("[shield] blocked %s: %s", ip, reason)
	}
}

// RecordSignal lets the API layer report a signal the proxy itself can't
// see from the response alone (biometric verification failure, admin
// moderation flag) by calling directly into the post-filter.
func (s *Shield) RecordSignal(ctx context.Context, ip string, biometricFail, adminFlag bool) {
	s.applyPostFilter(ctx, ip, 0, biometricFail, adminFlag)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}
