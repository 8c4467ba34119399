package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorsMiddlewareWildcard(t *testing.T) {
	r := gin.New()
	r.Use(corsMiddleware(nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://anything.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want %q", got, "*")
	}
}

func TestCorsMiddlewareAllowList(t *testing.T) {
	r := gin.New()
	r.Use(corsMiddleware([]string{"https://allowed.example"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		origin      string
		wantAllowed bool
	}{
		{"https://allowed.example", true},
		{"https://not-allowed.example", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", tc.origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		got := w.Header().Get("Access-Control-Allow-Origin")
		if tc.wantAllowed && got != tc.origin {
			t.Errorf("origin %q: Allow-Origin = %q, want it echoed back", tc.origin, got)
		}
		if !tc.wantAllowed && got != "" {
			t.Errorf("origin %q: Allow-Origin = %q, want empty", tc.origin, got)
		}
	}
}

func TestCorsMiddlewareHandlesPreflight(t *testing.T) {
	r := gin.New()
	r.Use(corsMiddleware(nil))
	r.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestByDeviceIDPeeksBodyWithoutConsumingIt(t *testing.T) {
	r := gin.New()
	var sawDeviceIDInHandler string
	r.POST("/x", func(c *gin.Context) {
		id := byDeviceID(c)
		if id != "device-123" {
			t.Errorf("byDeviceID = %q, want %q", id, "device-123")
		}
		var body struct {
			DeviceID string `json:"deviceId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			t.Errorf("handler's own ShouldBindJSON failed after byDeviceID peeked: %v", err)
		}
		sawDeviceIDInHandler = body.DeviceID
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"deviceId":"device-123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if sawDeviceIDInHandler != "device-123" {
		t.Errorf("handler's ShouldBindJSON saw deviceId = %q, want %q", sawDeviceIDInHandler, "device-123")
	}
}

func TestByDeviceIDFallsBackToClientIP(t *testing.T) {
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		id := byDeviceID(c)
		if id == "" {
			t.Error("byDeviceID returned empty string for a body with no deviceId")
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.5:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
}
