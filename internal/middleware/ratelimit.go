package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RealIP resolves the caller's address for rate-limit keying. Behind a proxy
// the first X-Forwarded-For hop is the client; otherwise RemoteAddr is.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type bucket struct {
	n       int
	resetAt time.Time
}

// RateLimiter counts requests per key in fixed windows. It guards the
// register and login endpoints against credential guessing; everything
// behind authentication is unthrottled.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*bucket
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{entries: make(map[string]*bucket)}
}

// Allow reports whether the key still has budget in its current window. The
// first request after a window lapses starts a fresh one.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.entries[key]
	if !ok || now.After(b.resetAt) {
		rl.entries[key] = &bucket{n: 1, resetAt: now.Add(window)}
		return true
	}
	b.n++
	return b.n <= limit
}

// Cleanup drops lapsed buckets so the map does not grow with one entry per
// client address forever. The job registry runs it alongside the other
// sweeps.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, b := range rl.entries {
		if now.After(b.resetAt) {
			delete(rl.entries, key)
		}
	}
}

// RateLimit wraps a handler with per-key throttling.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r), limit, window) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
