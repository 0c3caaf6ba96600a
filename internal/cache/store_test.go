package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_ExpiresOnRead(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	if v, ok, _ := s.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("fresh get: %q %v", v, ok)
	}

	clock.Advance(time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("entry should be expired at its deadline")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be evicted on read, len=%d", s.Len())
	}
}

func TestMemoryStore_NoTTL(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"), 0)
	clock.Advance(24 * time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("entry without ttl should not expire")
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	_ = s.Set(ctx, "a", []byte("1"), time.Second)
	_ = s.Set(ctx, "b", []byte("2"), time.Second)
	_ = s.Set(ctx, "c", []byte("3"), time.Hour)
	clock.Advance(2 * time.Second)

	if n := s.Sweep(); n != 2 {
		t.Errorf("swept %d, want 2", n)
	}
	if s.Len() != 1 {
		t.Errorf("len after sweep: %d", s.Len())
	}
}

func TestMemoryStore_MaxEntries(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore(WithClock(clock.Now), WithMaxEntries(2))
	ctx := context.Background()

	_ = s.Set(ctx, "long", []byte("1"), time.Hour)
	_ = s.Set(ctx, "short", []byte("2"), time.Minute)
	_ = s.Set(ctx, "new", []byte("3"), time.Hour)

	if s.Len() != 2 {
		t.Fatalf("len: got %d, want 2", s.Len())
	}
	if _, ok, _ := s.Get(ctx, "short"); ok {
		t.Error("soonest-expiring entry should have been evicted")
	}
	if _, ok, _ := s.Get(ctx, "long"); !ok {
		t.Error("long-lived entry should remain")
	}

	// Overwriting an existing key does not evict.
	_ = s.Set(ctx, "long", []byte("4"), time.Hour)
	if s.Len() != 2 {
		t.Errorf("len after overwrite: %d", s.Len())
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'x'
	v, _, _ := s.Get(ctx, "k")
	if string(v) != "abc" {
		t.Errorf("stored value aliased caller buffer: %q", v)
	}
}
