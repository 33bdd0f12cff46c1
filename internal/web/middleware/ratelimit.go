package middleware

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/conduit-lang/catalog/internal/web/response"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds the number of per-client limiters kept in memory
const maxTrackedKeys = 4096

// KeyFunc extracts the rate limit key from a request
type KeyFunc func(*http.Request) string

// RateLimiter hands out one token bucket per key.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	keyFunc  KeyFunc
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter allows limit events per second with the given burst for
// every key. A nil keyFunc keys by client IP.
func NewRateLimiter(limit rate.Limit, burst int, keyFunc KeyFunc) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if keyFunc == nil {
		keyFunc = IPKeyFunc
	}
	cache, _ := lru.New[string, *rate.Limiter](maxTrackedKeys)
	return &RateLimiter{limit: limit, burst: burst, keyFunc: keyFunc, limiters: cache}
}

// Allow reports whether the request may proceed
func (l *RateLimiter) Allow(r *http.Request) bool {
	return l.limiter(l.keyFunc(r)).Allow()
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Add(key, lim)
	return lim
}

// retryAfter is the number of whole seconds until one token refills
func (l *RateLimiter) retryAfter() int {
	if l.limit <= 0 || l.limit == rate.Inf {
		return 1
	}
	return int(math.Ceil(1 / float64(l.limit)))
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r) {
			response.RenderTooManyRequests(w, l.retryAfter())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IPKeyFunc uses the first X-Forwarded-For entry, then X-Real-IP, then the
// host part of RemoteAddr.
func IPKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
