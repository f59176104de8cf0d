package tunnelserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/beaconlink/beaconlink/internal/utils"
)

// publicRateLimit is spec.md §8's "simple per-IP rate limiting at the
// edge": 200 requests per minute, expressed as a token bucket refilling
// continuously rather than a fixed window.
const (
	publicRateLimit = 200.0 / 60.0 // tokens per second
	publicRateBurst = 200
)

// ipRateLimiter keeps one token bucket per client IP, grounded in the
// teacher's global RateLimitMiddleware (internal/api/middleware/rate.go),
// generalized from a single shared limiter to one limiter per key so
// tenants don't starve each other.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateEntry
}

type rateEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newIPRateLimiter() *ipRateLimiter {
	return &ipRateLimiter{limiters: make(map[string]*rateEntry)}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	e, ok := l.limiters[ip]
	if !ok {
		e = &rateEntry{limiter: rate.NewLimiter(rate.Limit(publicRateLimit), publicRateBurst)}
		l.limiters[ip] = e
	}
	e.seen = time.Now()
	l.mu.Unlock()

	return e.limiter.Allow()
}

// sweep discards entries untouched for longer than ttl, called
// periodically so long-lived servers don't accumulate one limiter per
// ever-churning client IP forever.
func (l *ipRateLimiter) sweep(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, e := range l.limiters {
		if e.seen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

// rateLimitMiddleware rejects public traffic over the per-IP limit with
// 429. The control endpoint (/connect) and /health are exempt since they
// are registered on their own gin routes, not behind this middleware.
func rateLimitMiddleware(l *ipRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := utils.GetRealIP(c)
		if !l.allow(ip) {
			c.String(http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
