package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsLoopbackListenAddr(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1:8000": true,
		"localhost:8000": true,
		"[::1]:8000":     true,
		":8000":          false,
		"0.0.0.0:8000":   false,
		"[::]:8000":      false,
		"10.0.0.5:8000":  false,
		"example.com:80": false,
		"nonsense":       false,
		"":               false,
	}
	for addr, want := range tests {
		assert.Equal(t, want, isLoopbackListenAddr(addr), addr)
	}
}

func TestCheckAuthToken(t *testing.T) {
	newReq := func(remote string, headers map[string]string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
		r.RemoteAddr = remote
		for k, v := range headers {
			r.Header.Set(k, v)
		}
		return r
	}

	assert.True(t, checkAuthToken("", newReq("10.0.0.1:1", nil)))
	assert.True(t, checkAuthToken("tok", newReq("127.0.0.1:5000", nil)))
	assert.True(t, checkAuthToken("tok", newReq("[::1]:5000", nil)))
	assert.False(t, checkAuthToken("tok", newReq("127.0.0.1:5000", map[string]string{"X-Forwarded-For": "1.2.3.4"})))
	assert.False(t, checkAuthToken("tok", newReq("10.0.0.1:1", nil)))
	assert.True(t, checkAuthToken("tok", newReq("10.0.0.1:1", map[string]string{"X-Auth-Token": "tok"})))
	assert.True(t, checkAuthToken("tok", newReq("10.0.0.1:1", map[string]string{"Authorization": "bearer tok"})))
	assert.False(t, checkAuthToken("tok", newReq("10.0.0.1:1", map[string]string{"Authorization": "Bearer nope"})))
	assert.False(t, checkAuthToken("tok", newReq("10.0.0.1:1", map[string]string{"Authorization": "Basic tok"})))
}

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(60) // 1 per second, burst 10
	l.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		assert.True(t, l.allow("a"), i)
	}
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))

	now = now.Add(2 * time.Second)
	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	assert.True(t, newIPRateLimiter(0).allow("a"))
	var nilLimiter *ipRateLimiter
	assert.True(t, nilLimiter.allow("a"))
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec}

	n, err := sr.WriteString("hello")
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	_, _ = sr.ReadFrom(strings.NewReader(" world"))
	sr.Flush()

	assert.Equal(t, http.StatusOK, sr.status)
	assert.Equal(t, 11, sr.bytes)
	assert.Equal(t, "hello world", rec.Body.String())
	assert.True(t, rec.Flushed)
	assert.Equal(t, rec, sr.Unwrap())
}

func TestRequestLoggerKeepsIncomingID(t *testing.T) {
	h := requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCORSAllowList(t *testing.T) {
	h := corsMiddleware([]string{"http://ok.test"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://ok.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://ok.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
