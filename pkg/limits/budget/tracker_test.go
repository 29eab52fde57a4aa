package budget

import (
	"context"
	"sync"
	"testing"
	"time"

	"mercator-hq/floodgate/pkg/limits/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
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

func newTestTracker(t *testing.T, clock *fakeClock, ttl time.Duration) *Tracker {
	t.Helper()

	backend := storage.NewMemoryBackendWithConfig(storage.MemoryBackendConfig{
		CleanupInterval: time.Hour,
		Clock:           clock.Now,
	})
	t.Cleanup(func() { backend.Close() })

	return NewTracker(Config{Store: backend, TTL: ttl})
}

// ============================================================================
// Tracker Tests
// ============================================================================

func TestTracker_AbsentKeyIsZero(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(t, clock, 0)

	val, err := tracker.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != 0 {
		t.Errorf("Expected 0 for absent key, got %d", val)
	}
}

func TestTracker_AddAccumulates(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(t, clock, 0)
	ctx := context.Background()

	if err := tracker.Add(ctx, "k", 500); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := tracker.Add(ctx, "k", 250); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	val, err := tracker.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != 750 {
		t.Errorf("Expected 750, got %d", val)
	}
}

func TestTracker_ExpiresAfterTTL(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(t, clock, DefaultTTL)
	ctx := context.Background()

	tracker.Add(ctx, "k", 900)

	// Just inside the TTL the counter is intact.
	clock.Advance(DefaultTTL - time.Second)
	val, _ := tracker.Get(ctx, "k")
	if val != 900 {
		t.Errorf("Expected 900 inside TTL, got %d", val)
	}

	// Past the TTL it reads zero.
	clock.Advance(2 * time.Second)
	val, _ = tracker.Get(ctx, "k")
	if val != 0 {
		t.Errorf("Expected 0 past TTL, got %d", val)
	}
}

func TestTracker_AddRefreshesTTL(t *testing.T) {
	clock := newFakeClock()
	tracker := newTestTracker(t, clock, DefaultTTL)
	ctx := context.Background()

	tracker.Add(ctx, "k", 100)
	clock.Advance(DefaultTTL - time.Second)

	// The second Add lands before expiry, so the counter accumulates and
	// its lifetime restarts from this update.
	tracker.Add(ctx, "k", 100)
	clock.Advance(DefaultTTL - time.Second)

	val, _ := tracker.Get(ctx, "k")
	if val != 200 {
		t.Errorf("Expected 200 after refreshed TTL, got %d", val)
	}
}

// ============================================================================
// Admission Tests
// ============================================================================

func TestAllowed(t *testing.T) {
	tests := []struct {
		name     string
		current  int64
		estimate int64
		limit    int64
		want     bool
	}{
		{"empty budget", 0, 500, 1000, true},
		{"exactly at limit", 500, 500, 1000, true},
		{"one over limit", 501, 500, 1000, false},
		{"zero estimate always fits", 1000, 0, 1000, true},
		{"full budget rejects any estimate", 1000, 1, 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allowed(tt.current, tt.estimate, tt.limit); got != tt.want {
				t.Errorf("Allowed(%d, %d, %d) = %t, want %t",
					tt.current, tt.estimate, tt.limit, got, tt.want)
			}
		})
	}
}
