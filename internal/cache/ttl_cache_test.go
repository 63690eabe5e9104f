package cache

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestNew(t *testing.T) {
	ttl := 5 * time.Minute
	cache := New[string, int](ttl)

	if cache == nil {
		t.Fatal("New returned nil")
	}
	if cache.TTL() != ttl {
		t.Errorf("TTL mismatch: got %v, want %v", cache.TTL(), ttl)
	}
	if cache.data == nil {
		t.Error("data map not initialized")
	}
	if cache.Len() != 0 {
		t.Errorf("New cache should be empty, got %d", cache.Len())
	}
}

func TestSetAndGet(t *testing.T) {
	cache := New[string, int](1 * time.Minute)

	cache.Set("key1", 42)

	value, ok := cache.Get("key1")
	if !ok {
		t.Fatal("Get returned ok=false for existing key")
	}
	if value != 42 {
		t.Errorf("Get returned wrong value: got %d, want 42", value)
	}

	_, ok = cache.Get("nonexistent")
	if ok {
		t.Error("Get returned ok=true for non-existent key")
	}
}

func TestGetExpired(t *testing.T) {
	clock := newFakeClock()
	cache := New[string, int](time.Hour, WithClock(clock.Now))

	cache.Set("key1", 42)

	clock.Advance(59 * time.Minute)
	if value, ok := cache.Get("key1"); !ok || value != 42 {
		t.Fatal("entry should still be live before the TTL elapses")
	}

	clock.Advance(time.Minute)
	if _, ok := cache.Get("key1"); ok {
		t.Error("Get returned ok=true for expired entry")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry should be dropped on access, Len() = %d", cache.Len())
	}
}

func TestPerEntryExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := New[string, int](time.Hour, WithClock(clock.Now))

	cache.Set("old", 1)
	clock.Advance(30 * time.Minute)
	cache.Set("new", 2)
	clock.Advance(30 * time.Minute)

	if _, ok := cache.Get("old"); ok {
		t.Error("old entry should have expired")
	}
	if v, ok := cache.Get("new"); !ok || v != 2 {
		t.Errorf("Get(new) = %d, %v; want 2, true", v, ok)
	}
}

func TestNoExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := New[string, string](NoExpiry, WithClock(clock.Now))

	cache.Set("unfoldingWord/en_ult", "repo")
	clock.Advance(24 * 365 * time.Hour)

	if _, ok := cache.Get("unfoldingWord/en_ult"); !ok {
		t.Error("NoExpiry entry should never expire")
	}
}

func TestSetUntil(t *testing.T) {
	clock := newFakeClock()
	cache := New[string, int](time.Hour, WithClock(clock.Now))

	cache.Set("fresh", 1)
	cache.SetUntil("restored", 2, clock.Now().Add(10*time.Minute))

	clock.Advance(20 * time.Minute)
	if _, ok := cache.Get("restored"); ok {
		t.Error("restored entry should expire at its own instant, not the cache TTL")
	}
	if _, ok := cache.Get("fresh"); !ok {
		t.Error("entry set with the cache TTL should still be live")
	}
}

func TestDelete(t *testing.T) {
	cache := New[string, int](1 * time.Minute)

	cache.Set("key1", 1)
	cache.Set("key2", 2)

	cache.Delete("key1")
	if _, ok := cache.Get("key1"); ok {
		t.Error("Get should fail after Delete")
	}
	if _, ok := cache.Get("key2"); !ok {
		t.Error("Delete removed the wrong key")
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestIsolation(t *testing.T) {
	a := New[string, int](time.Minute)
	b := New[string, int](time.Minute)

	a.Set("unfoldingWord/en/jon", 1)
	if _, ok := b.Get("unfoldingWord/en/jon"); ok {
		t.Error("separate cache instances must not share entries")
	}
}

func TestConcurrentAccess(t *testing.T) {
	cache := New[int, string](1 * time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cache.Set(n, "value")
		}(i)
	}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cache.Get(n)
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cache.Delete(n)
		}(i)
	}

	wg.Wait()
}

func TestZeroValue(t *testing.T) {
	cache := New[string, int](1 * time.Minute)

	cache.Set("zero", 0)

	value, ok := cache.Get("zero")
	if !ok {
		t.Error("Get returned ok=false for zero value")
	}
	if value != 0 {
		t.Errorf("Get returned wrong zero value: got %d, want 0", value)
	}
}
