package shield

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r.RemoteAddr = "10.0.0.1:443"
	if got := clientIP(r); got != "203.0.113.5" {
		t.Fatalf("expected forwarded IP, got %q", got)
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.7:12345"
	if got := clientIP(r); got != "198.51.100.7" {
		t.Fatalf("expected remote addr host, got %q", got)
	}
}

func TestSlash24(t *testing.T) {
	if got := slash24("203.0.113.42"); got != "203.0.113." {
		t.Fatalf("expected /24 prefix, got %q", got)
	}
	if got := slash24("not-an-ip"); got != "" {
		t.Fatalf("expected empty string for malformed input, got %q", got)
	}
}
