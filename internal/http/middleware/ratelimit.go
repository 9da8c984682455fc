package middleware

import (
	"net/http"
	"sync"
	"time"
)

// Fallbacks when the limiter is wired with zero values; they mirror the
// WEBHOOK_RATE_PER_SEC and WEBHOOK_BURST config defaults.
const (
	defaultRatePerSec = 5.0
	defaultBurst      = 10

	bucketSweepEvery = 5 * time.Minute
	bucketIdleExpiry = 10 * time.Minute
)

// RateLimiter throttles inbound webhook traffic per client, one token
// bucket per IP.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens refilled per second
	burst   int     // bucket capacity
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates a limiter allowing rate requests/sec with the
// given burst per client IP, and starts its stale-bucket sweeper.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := newRateLimiter(rate, burst, time.Now)
	go rl.sweep()
	return rl
}

func newRateLimiter(rate float64, burst int, now func() time.Time) *RateLimiter {
	if rate <= 0 {
		rate = defaultRatePerSec
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		now:     now,
	}
}

// Allow reports whether a request from ip fits the current budget.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), seen: now}
		rl.buckets[ip] = b
	}

	b.tokens += now.Sub(b.seen).Seconds() * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep evicts buckets idle longer than bucketIdleExpiry so one-off
// senders do not accumulate forever.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(bucketSweepEvery)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := rl.now().Add(-bucketIdleExpiry)
		for ip, b := range rl.buckets {
			if b.seen.Before(cutoff) {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// clientIP prefers the X-Real-Ip header set by chi's RealIP middleware
// and falls back to the socket address.
func clientIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// RateLimit rejects requests over the configured rate with 429.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
