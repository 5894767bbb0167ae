package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestContext(t *testing.T, remoteAddr string, headers map[string]string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req, err := http.NewRequest(http.MethodGet, "/", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.Request = req

	return c
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	c := newTestContext(t, "10.0.0.1:43210", map[string]string{
		"X-Forwarded-For": "203.0.113.7, 10.0.0.2, 10.0.0.3",
		"X-Real-IP":       "198.51.100.9",
	})

	if got := ClientIP(c); got != "203.0.113.7" {
		t.Fatalf("expected first forwarded entry, got %q", got)
	}
}

func TestClientIPFallsBackToRealIP(t *testing.T) {
	c := newTestContext(t, "10.0.0.1:43210", map[string]string{
		"X-Real-IP": "198.51.100.9",
	})

	if got := ClientIP(c); got != "198.51.100.9" {
		t.Fatalf("expected real-ip header, got %q", got)
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	c := newTestContext(t, "192.0.2.4:55001", nil)

	if got := ClientIP(c); got != "192.0.2.4" {
		t.Fatalf("expected socket peer host, got %q", got)
	}
}

func TestClientIPSkipsEmptyForwardedEntry(t *testing.T) {
	c := newTestContext(t, "192.0.2.4:55001", map[string]string{
		"X-Forwarded-For": "  ,10.0.0.2",
		"X-Real-IP":       "198.51.100.9",
	})

	if got := ClientIP(c); got != "198.51.100.9" {
		t.Fatalf("expected fallback past blank forwarded entry, got %q", got)
	}
}

func TestClientMetaCapturesUserAgent(t *testing.T) {
	c := newTestContext(t, "192.0.2.4:55001", map[string]string{
		"User-Agent": "integration-test/1.0",
	})

	meta := ClientMeta(c)
	if meta.IP != "192.0.2.4" {
		t.Fatalf("unexpected meta IP %q", meta.IP)
	}
	if meta.UserAgent != "integration-test/1.0" {
		t.Fatalf("unexpected meta user agent %q", meta.UserAgent)
	}
}
