package app

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

// Flush keeps SSE working through the wrapper; /api/chat/stream needs
// an http.Flusher.
func (w *statusRecorder) Flush() {
	if fl, ok := w.ResponseWriter.(http.Flusher); ok {
		fl.Flush()
	}
}

// Unwrap is used by http.ResponseController.
func (w *statusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("http hijacker not supported")
	}
	return hj.Hijack()
}

func (w *statusRecorder) ReadFrom(r io.Reader) (int64, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	var (
		n   int64
		err error
	)
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(r)
	} else {
		n, err = io.Copy(w.ResponseWriter, r)
	}
	w.bytes += int(n)
	return n, err
}

func (w *statusRecorder) WriteString(s string) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := io.WriteString(w.ResponseWriter, s)
	w.bytes += n
	return n, err
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// ============================================================
// rate limit (token bucket per client ip)
// ============================================================

type ipRateLimiter struct {
	mu     sync.Mutex
	rpm    int
	burst  float64
	states map[string]*bucket
	ttl    time.Duration
	now    func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newIPRateLimiter(rpm int) *ipRateLimiter {
	return &ipRateLimiter{
		rpm:    max(rpm, 0),
		burst:  float64(max(1, rpm/6)), // ~10s burst
		states: make(map[string]*bucket),
		ttl:    10 * time.Minute,
		now:    time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	if l == nil || l.rpm <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.states[ip]
	if b == nil {
		b = &bucket{tokens: l.burst, last: now}
		l.states[ip] = b
	}

	if dt := now.Sub(b.last).Seconds(); dt > 0 {
		b.tokens = min(l.burst, b.tokens+dt*float64(l.rpm)/60.0)
		b.last = now
	}
	if b.tokens < 1.0 {
		return false
	}
	b.tokens--

	if len(l.states) > 2048 {
		cutoff := now.Add(-l.ttl)
		for k, v := range l.states {
			if v.last.Before(cutoff) {
				delete(l.states, k)
			}
		}
	}
	return true
}

// ============================================================
// middleware
// ============================================================

// requestLogger assigns a request id and writes one access log line per
// request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
			r.Header.Set("X-Request-Id", reqID)
		}
		w.Header().Set("X-Request-Id", reqID)

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		defer func() {
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			log.Info().
				Str("req_id", reqID).
				Str("ip", clientIP(r)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", rec.bytes).
				Dur("dur", time.Since(start)).
				Msg("http")
		}()
		next.ServeHTTP(rec, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		// the player page embeds youtube, it is never framed itself
		h.Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers preflights and tags responses for the configured
// origins ("*" allows any).
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			allowed[o] = true
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				h := w.Header()
				if allowAll {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Auth-Token")
				if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// apiGuard rate limits and authenticates /api/ routes. Pages and the
// public JSON endpoints stay open so the app can load.
func apiGuard(cfg Config) func(http.Handler) http.Handler {
	limiter := newIPRateLimiter(cfg.HTTPRateLimitRPM)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.allow(clientIP(r)) {
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			if !checkAuthToken(cfg.HTTPAuthToken, r) {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkAuthToken lets loopback peers through without a token unless the
// request came through a proxy.
func checkAuthToken(token string, r *http.Request) bool {
	if token == "" {
		return true
	}
	if isLoopbackRemoteAddr(r.RemoteAddr) && !hasForwardedHeaders(r) {
		return true
	}
	if t := strings.TrimSpace(r.Header.Get("X-Auth-Token")); t != "" {
		return tokenEqual(t, token)
	}
	a := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(a) > 7 && strings.EqualFold(a[:7], "bearer ") {
		return tokenEqual(strings.TrimSpace(a[7:]), token)
	}
	return false
}

func tokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
