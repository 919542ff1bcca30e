package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonny/hookaudit/pkg/apierror"
	"github.com/jonny/hookaudit/pkg/requestcontext"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client key with eviction of stale entries.
type rateLimiter struct {
	mu                sync.Mutex
	entries           map[string]*limiterEntry
	requestsPerMinute int
	burst             int
	maxEntries        int
	trustProxy        bool
}

func newRateLimiter(requestsPerMinute int, trustProxy bool) *rateLimiter {
	return &rateLimiter{
		entries:           make(map[string]*limiterEntry),
		requestsPerMinute: requestsPerMinute,
		burst:             max(requestsPerMinute, 1),
		maxEntries:        10000,
		trustProxy:        trustProxy,
	}
}

// evictionLoop periodically removes stale entries until ctx is done.
func (rl *rateLimiter) evictionLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictStale(10 * time.Minute)
		}
	}
}

// evictStale removes entries not used within maxAge.
func (rl *rateLimiter) evictStale(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for key, e := range rl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(rl.entries, key)
		}
	}
}

// allow reports whether key may make another request. New keys are
// rejected once maxEntries is reached.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	e, ok := rl.entries[key]
	if !ok {
		if len(rl.entries) >= rl.maxEntries {
			rl.mu.Unlock()
			return false
		}
		perSecond := rate.Limit(float64(rl.requestsPerMinute) / 60)
		e = &limiterEntry{limiter: rate.NewLimiter(perSecond, rl.burst)}
		rl.entries[key] = e
	}
	e.lastSeen = time.Now()
	rl.mu.Unlock()

	return e.limiter.Allow()
}

// clientKey identifies the caller: the authenticated actor when there is
// one, otherwise the remote IP.
func (rl *rateLimiter) clientKey(r *http.Request) string {
	if actor := requestcontext.Actor(r.Context()); actor != "" {
		return "actor:" + actor
	}
	return "ip:" + remoteIP(r, rl.trustProxy)
}

// NewRateLimiter returns a middleware that limits requests per minute per
// client. The eviction goroutine stops when ctx is done. A non-positive
// requestsPerMinute disables limiting.
func NewRateLimiter(ctx context.Context, requestsPerMinute int, trustProxy bool) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rl := newRateLimiter(requestsPerMinute, trustProxy)
	go rl.evictionLoop(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(rl.clientKey(r)) {
				apierror.Write(w, apierror.TooManyRequests("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// remoteIP extracts the client IP from the request.
// Only trusts X-Forwarded-For when trustProxy is true (i.e., behind a known reverse proxy).
func remoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.IndexByte(xff, ','); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndexByte(addr, ':'); idx != -1 {
		return addr[:idx]
	}
	return addr
}
