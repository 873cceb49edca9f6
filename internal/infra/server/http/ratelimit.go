package httpserver

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiterIdle is how long an idle client's bucket survives before the
// sweeper reclaims it.
const clientLimiterIdle = 10 * time.Minute

// ClientRateLimiter applies a token bucket per client IP. Exhausted clients
// receive 429 without reaching the wrapped handler.
type ClientRateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientBucket
	rate     rate.Limit
	burst    int
	now      func() time.Time
	lastSeen time.Duration
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewClientRateLimiter builds a limiter refilling at perSecond tokens with
// the given burst capacity.
func NewClientRateLimiter(perSecond float64, burst int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients:  make(map[string]*clientBucket),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
		lastSeen: clientLimiterIdle,
	}
}

// Allow reports whether the client may proceed and charges one token.
func (l *ClientRateLimiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, ok := l.clients[clientIP]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[clientIP] = bucket
	}
	bucket.seen = now

	l.pruneLocked(now)
	return bucket.limiter.Allow()
}

func (l *ClientRateLimiter) pruneLocked(now time.Time) {
	for ip, bucket := range l.clients {
		if now.Sub(bucket.seen) > l.lastSeen {
			delete(l.clients, ip)
		}
	}
}

// Middleware rejects over-limit clients with 429 before invoking next.
func (l *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(RemoteIP(r)) {
			WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
