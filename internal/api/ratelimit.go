package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// tokenBucket refills continuously at refillRate tokens per second up to
// capacity.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	last       time.Time
	now        func() time.Time
}

func newTokenBucket(capacity, refillRate float64, now func() time.Time) *tokenBucket {
	return &tokenBucket{tokens: capacity, capacity: capacity, refillRate: refillRate, last: now(), now: now}
}

// refill must be called with mu held.
func (tb *tokenBucket) refill() time.Time {
	now := tb.now()
	tb.tokens = min(tb.capacity, tb.tokens+now.Sub(tb.last).Seconds()*tb.refillRate)
	tb.last = now
	return now
}

func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *tokenBucket) remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return int(tb.tokens)
}

// full returns when the bucket will be full again.
func (tb *tokenBucket) full() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := tb.refill()
	if tb.tokens >= tb.capacity || tb.refillRate <= 0 {
		return now
	}
	return now.Add(time.Duration((tb.capacity - tb.tokens) / tb.refillRate * float64(time.Second)))
}

func (tb *tokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.last
}

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	config  RateLimiterConfig
	now     func() time.Time
	idleTTL time.Duration

	mu      sync.Mutex
	buckets map[string]*tokenBucket
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a rate limiter and starts its idle-bucket sweeper.
// Call Close to stop the sweeper.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.BurstSize <= 0 {
		config.BurstSize = 10
	}
	rl := &RateLimiter{
		config:  config,
		now:     time.Now,
		idleTTL: 5 * time.Minute,
		buckets: make(map[string]*tokenBucket),
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Close stops the sweeper.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) bucket(ip string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = newTokenBucket(float64(rl.config.BurstSize), float64(rl.config.RequestsPerMinute)/60, rl.now)
		rl.buckets[ip] = b
	}
	return b
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, b := range rl.buckets {
		if now.Sub(b.idleSince()) > rl.idleTTL {
			delete(rl.buckets, ip)
		}
	}
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.bucket(ip).allow()
}

// Middleware rejects requests over the limit with 429 and sets the
// X-RateLimit-* headers on every response.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := rl.bucket(clientIP(r))
		allowed := b.allow()
		full := b.full()

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(b.remaining()))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(full.Unix(), 10))

		if !allowed {
			retryAfter := int(full.Sub(rl.now()).Seconds()) + 1
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"Rate limit exceeded. Try again in "+strconv.Itoa(retryAfter)+" seconds.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the leftmost valid X-Forwarded-For entry, then
// X-Real-IP, then the connection address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) != nil {
		return ip
	}
	return "unknown"
}
