package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestTokenBucket_Allow(t *testing.T) {
	clock := newFakeClock()
	tb := newTokenBucket(3, 1, clock.now)

	for i := range 3 {
		if !tb.allow() {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if tb.allow() {
		t.Fatal("fourth request should be denied")
	}

	clock.advance(time.Second)
	if !tb.allow() {
		t.Error("a token should refill after one second")
	}
	if tb.remaining() != 0 {
		t.Errorf("remaining() = %d, want 0", tb.remaining())
	}
}

func TestTokenBucket_Full(t *testing.T) {
	clock := newFakeClock()
	tb := newTokenBucket(2, 0.5, clock.now)
	tb.allow()
	tb.allow()

	want := clock.now().Add(4 * time.Second)
	if got := tb.full(); !got.Equal(want) {
		t.Errorf("full() = %v, want %v", got, want)
	}
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 2})
	defer rl.Close()

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("burst should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("third request from the same IP should be denied")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("another IP has its own bucket")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 1})
	defer rl.Close()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "60" {
		t.Errorf("X-RateLimit-Limit = %q", w.Header().Get("X-RateLimit-Limit"))
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set")
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 1})
	defer rl.Close()
	rl.now = clock.now

	rl.Allow("10.0.0.1")
	clock.advance(10 * time.Minute)
	rl.Allow("10.0.0.2")
	rl.prune()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["10.0.0.1"]; ok {
		t.Error("idle bucket should be pruned")
	}
	if _, ok := rl.buckets["10.0.0.2"]; !ok {
		t.Error("active bucket should be kept")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded leftmost", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.5"},
		{"forwarded invalid", map[string]string{"X-Forwarded-For": "garbage"}, "192.0.2.1:1", "192.0.2.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "10.0.0.1:1", "203.0.113.9"},
		{"ipv6", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"unparseable", nil, "nonsense", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
